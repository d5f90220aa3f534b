package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/chazu/ablation/pkg/combine"
	"github.com/chazu/ablation/pkg/config"
	"github.com/chazu/ablation/pkg/geom"
)

const testConfig = `
[mesh]
cells = 32

[voxel]
spacing = 1.0
`

const testPlan = `
(probe :length 20 :radius 2)
(tumor :sphere 6 :center (vec3 5 0 -10))
(trajectory :entry (vec3 0 0 0) :target (vec3 0 0 -20))
(trajectory :entry (vec3 10 0 0) :target (vec3 10 0 -20))
(bands -4 -2 0)
(fiducials
  :native (list (vec3 0 0 0) (vec3 10 0 0) (vec3 0 10 0))
  :table  (list (vec3 0 0 0) (vec3 10 0 0) (vec3 0 10 0)))
`

// writeFiles writes the test config and plan into a temp dir.
func writeFiles(t *testing.T, plan string) (cfgPath, planPath string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "ablation.toml")
	planPath = filepath.Join(dir, "plan.abl")
	if err := os.WriteFile(cfgPath, []byte(testConfig), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(planPath, []byte(plan), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath, planPath
}

// execute runs the root command and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)
	logger.Info("test message")
	if buf.Len() == 0 {
		t.Error("logger should have written output")
	}

	buf.Reset()
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output at info level: %q", buf.String())
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	if loggerFromContext(ctx) != log.Default() {
		t.Error("expected log.Default() without a logger in context")
	}
	if got := configFromContext(ctx); got.Mesh.Cells != config.Default().Mesh.Cells {
		t.Errorf("expected default config, got %+v", got)
	}

	l := newLogger(&bytes.Buffer{}, log.DebugLevel)
	c := config.Default()
	c.Mesh.Cells = 7
	ctx = withConfig(withLogger(ctx, l), c)
	if loggerFromContext(ctx) != l {
		t.Error("logger not carried by context")
	}
	if configFromContext(ctx).Mesh.Cells != 7 {
		t.Error("config not carried by context")
	}
}

func TestParseVec3(t *testing.T) {
	tests := []struct {
		in      string
		want    geom.Vec3
		wantErr bool
	}{
		{in: "1,2,3", want: geom.Vec3{X: 1, Y: 2, Z: 3}},
		{in: " 0, 0 , -1", want: geom.Vec3{Z: -1}},
		{in: "1.5e1,0,0", want: geom.Vec3{X: 15}},
		{in: "1,2", wantErr: true},
		{in: "1,2,3,4", wantErr: true},
		{in: "a,b,c", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVec3(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseVec3(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVec3(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseVec3(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBandLabel(t *testing.T) {
	th := []float64{-10, -5, -2}
	want := []string{"< -10", "[-10, -5)", "[-5, -2)", ">= -2"}
	for i, w := range want {
		if got := bandLabel(th, i); got != w {
			t.Errorf("bandLabel(%d) = %q, want %q", i, got, w)
		}
	}
	if got := bandLabel(nil, 0); got != "all" {
		t.Errorf("bandLabel(nil) = %q", got)
	}
}

func TestAlignCommand(t *testing.T) {
	cfgPath, _ := writeFiles(t, "")
	out, err := execute(t, "align", "--config", cfgPath, "--from", "0,0,1", "--to", "0,0,-1")
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if !strings.Contains(out, "180.0000°") {
		t.Errorf("expected a half turn, got:\n%s", out)
	}
	if !strings.Contains(out, "1.000000") {
		t.Errorf("expected det 1, got:\n%s", out)
	}
}

func TestAlignCommandDegenerate(t *testing.T) {
	cfgPath, _ := writeFiles(t, "")
	if _, err := execute(t, "align", "--config", cfgPath, "--to", "0,0,0"); err == nil {
		t.Fatal("expected error for zero target")
	}
	if _, err := execute(t, "align", "--config", cfgPath, "--to", "0,0"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunCommand(t *testing.T) {
	cfgPath, planPath := writeFiles(t, testPlan)
	outPath := filepath.Join(t.TempDir(), "scene.json")

	out, err := execute(t, "run", planPath, "--config", cfgPath, "--band", "--out", outPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{combine.CombinedName, "median", "covered", "Bands", ">= 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Trajectories) != 2 {
		t.Errorf("expected 2 trajectories, got %d", len(doc.Trajectories))
	}
	if len(doc.Meshes) != 2 {
		t.Errorf("expected tumor and zone meshes, got %d", len(doc.Meshes))
	}
	if doc.Summary == nil || doc.Summary.Count != len(doc.Distances) {
		t.Errorf("summary does not match distances: %+v, %d", doc.Summary, len(doc.Distances))
	}
	if len(doc.Thresholds) != 3 {
		t.Errorf("thresholds = %v", doc.Thresholds)
	}
	for _, d := range doc.Distances {
		if d != 0 && d != 1 && d != 2 && d != 3 {
			t.Fatalf("banded distance %g is not a band index", d)
		}
	}
}

func TestRunCommandThresholdFlag(t *testing.T) {
	cfgPath, planPath := writeFiles(t, testPlan)
	out, err := execute(t, "run", planPath, "--config", cfgPath, "--band", "--thresholds=-3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "< -3") || !strings.Contains(out, ">= -3") {
		t.Errorf("expected two bands around -3:\n%s", out)
	}
}

func TestRunCommandErrors(t *testing.T) {
	cfgPath, planPath := writeFiles(t, `(landmark 0 0 0)`)

	if _, err := execute(t, "run", planPath, "--config", cfgPath); err == nil {
		t.Error("expected error for odd landmark count")
	}
	if _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.abl"), "--config", cfgPath); err == nil {
		t.Error("expected error for missing plan file")
	}
	if _, err := execute(t, "run", "--config", cfgPath); err == nil {
		t.Error("expected error without a plan argument")
	}
}

func TestRunCommandNoTumor(t *testing.T) {
	cfgPath, planPath := writeFiles(t, `(trajectory :entry (vec3 0 0 0) :target (vec3 0 0 -20))`)
	out, err := execute(t, "run", planPath, "--config", cfgPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, combine.SingleName) || !strings.Contains(out, "no tumor") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRegisterCommand(t *testing.T) {
	cfgPath, planPath := writeFiles(t, testPlan)
	out, err := execute(t, "register", planPath, "--config", cfgPath)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, want := range []string{"rms", "fiducial 2", "0.00 mm"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRegisterCommandNoFiducials(t *testing.T) {
	cfgPath, planPath := writeFiles(t, `(landmark 0 0 0) (landmark 0 0 -1)`)
	if _, err := execute(t, "register", planPath, "--config", cfgPath); err == nil {
		t.Fatal("expected error for plan without fiducials")
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.0.0", "abc123", "2026-01-01")
	defer SetVersion("", "", "")
	if version != "1.0.0" || commit != "abc123" || date != "2026-01-01" {
		t.Errorf("version vars = %q %q %q", version, commit, date)
	}
}
