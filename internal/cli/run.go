package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/ablation/pkg/kernel/sdfx"
	"github.com/chazu/ablation/pkg/planner"
)

type runOpts struct {
	out        string
	band       bool
	thresholds []float64
}

func newRunCmd() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Place probes from a plan script, combine them and measure margins",
		Long: `Evaluate a plan script, place one probe per entry/target landmark pair,
union the probes into the ablation zone and, when the plan defines a tumor,
report the signed surface distances and tumor coverage.`,
		Example: `  ablation run examples/two_probes.abl
  ablation run plan.abl --band --out scene.json
  ablation run plan.abl --band --thresholds=-10,-5,-2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write meshes and distances as JSON")
	cmd.Flags().BoolVar(&opts.band, "band", false, "replace distances with band indices")
	cmd.Flags().Float64SliceVar(&opts.thresholds, "thresholds", nil, "ascending band thresholds in mm (default from plan or config)")

	return cmd
}

func runPlan(cmd *cobra.Command, path string, opts runOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)
	w := cmd.OutOrStdout()

	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	k := sdfx.New(sdfx.WithMeshCells(cfg.Mesh.Cells))
	s, err := planner.NewSession(k, cfg, logger)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	vr, err := s.LoadPlan(string(source))
	if err != nil {
		var ipe *planner.InvalidPlanError
		if errors.As(err, &ipe) {
			for _, e := range ipe.Result.Errors {
				printWarning(w, "%s", e.Error())
			}
		}
		return err
	}
	for _, warn := range vr.Warnings {
		printWarning(w, "%s", warn.Error())
	}
	prog.done(fmt.Sprintf("Placed %d probes", len(s.Instances())))

	if err := ctx.Err(); err != nil {
		return err
	}

	doc := &Export{Trajectories: s.Trajectories()}
	if len(s.Instances()) == 0 {
		printWarning(w, "plan has no trajectories; nothing to combine")
		return finishRun(ctx, w, s, opts, doc)
	}

	prog = newProgress(logger)
	cs, err := s.Combine()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Combined %d probes", cs.SourceCount))
	printSuccess(w, "%s from %d probe(s)", cs.Name, cs.SourceCount)

	if s.Tumor().IsZero() {
		printWarning(w, "plan has no tumor; margins not evaluated")
		return finishRun(ctx, w, s, opts, doc)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prog = newProgress(logger)
	res, err := s.EvaluateMargins()
	if err != nil {
		return err
	}
	prog.done("Evaluated margins")
	printSummary(w, res)
	doc.Summary = &res.Summary
	doc.Coverage = &res.Coverage

	if opts.band {
		thresholds := opts.thresholds
		if thresholds == nil {
			thresholds = s.Thresholds()
		}
		counts, err := s.Band(thresholds)
		if err != nil {
			return err
		}
		printBands(w, thresholds, counts)
		doc.Thresholds = thresholds
	}
	doc.Distances = res.Signed()

	return finishRun(ctx, w, s, opts, doc)
}

func finishRun(ctx context.Context, w io.Writer, s *planner.Session, opts runOpts, doc *Export) error {
	if opts.out == "" {
		return nil
	}
	meshes, err := s.Meshes()
	if err != nil {
		return err
	}
	doc.Meshes = meshData(meshes)
	if err := writeExport(opts.out, doc); err != nil {
		return err
	}
	loggerFromContext(ctx).Debug("wrote export", "file", opts.out, "meshes", len(doc.Meshes))
	printFile(w, opts.out)
	return nil
}
