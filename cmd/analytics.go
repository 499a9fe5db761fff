package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kumudkode/lms-apiserver/config"
	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/internal/mq"
	"github.com/kumudkode/lms-apiserver/internal/services"
	"github.com/spf13/cobra"
)

// analyticsCmd represents the analytics command
var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Consume lesson completion events from the message queue",
	Long: `Consume lesson completion events from the message queue. Usage:

	lms analytics
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

		queue, err := mq.FromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to message queue: %v\n", err)
			os.Exit(1)
		}
		if queue == nil {
			return errors.New("MQ_BACKEND must be set to run the analytics consumer")
		}
		defer func() {
			_ = queue.Close()
		}()

		logging.Info().Str("channel", services.LessonCompletedChannel).Msg("analytics consumer started")

		consumer := services.NewCompletionAnalytics(queue)
		if err := consumer.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
}
