package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/ablation/pkg/engine"
	"github.com/chazu/ablation/pkg/register"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <plan>",
		Short: "Fit the rigid transform taking native fiducials onto table fiducials",
		Example: `  ablation register examples/two_probes.abl
  ablation register -v plan.abl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			logger := loggerFromContext(ctx)

			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, evalErrs, err := engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout)).Evaluate(string(source))
			if err != nil {
				return err
			}
			if len(evalErrs) > 0 {
				return evalErrs[0]
			}
			if !p.HasFiducials() {
				return errors.New("plan defines no fiducials")
			}

			res, err := register.Rigid(p.TableFiducials, p.NativeFiducials)
			if err != nil {
				return err
			}
			logger.Debug("registered fiducials", "count", len(p.NativeFiducials), "rms", res.RMS)

			w := cmd.OutOrStdout()
			printTitle(w, "Native to table transform")
			printMat4(w, res.Transform)
			printKeyValue(w, "fiducials", fmt.Sprintf("%d", len(p.NativeFiducials)))
			printKeyValue(w, "rms", mm(res.RMS))

			printTitle(w, "Residuals")
			for i, n := range p.NativeFiducials {
				d := res.Apply(n).Distance(p.TableFiducials[i])
				printKeyValue(w, fmt.Sprintf("fiducial %d", i), mm(d))
			}
			return nil
		},
	}
}
