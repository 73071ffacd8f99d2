package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/fusion"
)

var scoreCmd = &cobra.Command{
	Use:   "score <snapshot.json|->",
	Short: "Fuse one snapshot and explain the score",
	Long: "Score reads a snapshot as JSON (from a file, or stdin with \"-\") and prints\n" +
		"the fused confusion score, its classification and every signal. Nothing is\n" +
		"journaled and no scheduler state is involved.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		snap, err := readSnapshot(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		a := fusion.NewScorer(cfg.Fusion).Score(&snap)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		}

		topic := snap.Topic
		if topic == "" {
			topic = engine.InferTopic(snap.ScreenContent)
		}
		renderAssessment(cmd.OutOrStdout(), topic, a)
		return nil
	},
}

func readSnapshot(stdin io.Reader, name string) (fusion.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return fusion.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	snap := fusion.NewSnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return fusion.Snapshot{}, fmt.Errorf("parse snapshot %s: %w", name, err)
	}
	return snap, nil
}

func init() {
	scoreCmd.Flags().Bool("json", false, "Print the assessment as JSON")
}
