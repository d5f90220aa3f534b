package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/ablation/pkg/geom"
)

func newAlignCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "align --to x,y,z [--from x,y,z]",
		Short: "Print the rotation taking one direction onto another",
		Long: `Print the minimal rotation taking --from onto --to. --from defaults to the
configured probe axis, so the output is the rotation applied to a probe
placed along --to.`,
		Example: `  ablation align --to 1,0,0
  ablation align --from 0,0,1 --to 0,0,-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			src := cfg.Probe.AxisVec()
			if from != "" {
				v, err := parseVec3(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				src = v
			}
			dst, err := parseVec3(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			rot, err := geom.AlignVectors(src, dst)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printTitle(w, fmt.Sprintf("Rotation %s %s %s", src, iconArrow, dst))
			printMat4(w, geom.Homogeneous(rot, geom.Vec3{}))
			axis, angle := rot.AxisAngle()
			printKeyValue(w, "axis", axis.String())
			printKeyValue(w, "angle", fmt.Sprintf("%.4f°", angle*180/math.Pi))
			printKeyValue(w, "det", fmt.Sprintf("%.6f", rot.Det()))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source direction (default: configured probe axis)")
	cmd.Flags().StringVar(&to, "to", "", "target direction")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// parseVec3 parses "x,y,z".
func parseVec3(s string) (geom.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vec3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var xyz [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		xyz[i] = f
	}
	return geom.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
