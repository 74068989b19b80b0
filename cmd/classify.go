package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/expression-client/internal/classifier"
	"github.com/example/expression-client/internal/controller"
)

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <image>",
		Short: "Submit one image and print the detected expression",
		Example: `  expression-client classify face.jpg
  CLASSIFIER_URL=http://fer.internal:5000 expression-client classify face.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.ctrl.SelectImage(&classifier.Image{Filename: filepath.Base(args[0]), Data: data}); err != nil {
				return errors.New(s.ctrl.State().Error)
			}

			state, err := s.ctrl.Submit(cmd.Context())
			if err != nil {
				return errors.New(state.Error)
			}
			if state.Error != "" {
				return errors.New(state.Error)
			}
			return renderResult(cmd.OutOrStdout(), state.Result)
		},
	}
}

func renderResult(w io.Writer, result *controller.Result) error {
	if result == nil {
		return errors.New(controller.MsgNotDetected)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Expression:\t%s\n", result.Expression)
	fmt.Fprintf(tw, "Accuracy:\t%s%%\n", result.AccuracyText)
	fmt.Fprintln(tw, "Probabilities:")
	for _, e := range result.Entries {
		fmt.Fprintf(tw, "  %s\t%s%%\n", e.Class, e.Percent)
	}
	return tw.Flush()
}
