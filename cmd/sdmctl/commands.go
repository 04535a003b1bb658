package main

import (
	"encoding/json"
	"fmt"

	"sdm-platform-be/internal/dto"
	"sdm-platform-be/internal/migration"
	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/internal/repository/implementation"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/memory"

	"github.com/spf13/cobra"
)

var historyRaw bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create extensions, tables and indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		return migration.Run(db)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Print the dialogue history of a thread as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		snaps, err := implementation.NewCheckpointRepository(db).History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries := graph.DiffHistory(snaps)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if historyRaw {
			return enc.Encode(entries)
		}
		return enc.Encode(dto.NewHistoryResponse(entries))
	},
}

var deleteThreadCmd = &cobra.Command{
	Use:   "delete-thread <thread-id>",
	Short: "Delete every checkpoint and the conversation record of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		if err := implementation.NewCheckpointRepository(db).Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := implementation.NewConversationRepository(db).DeleteByThreadID(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted thread %s\n", args[0])
		return nil
	},
}

var forgetUserCmd = &cobra.Command{
	Use:   "forget-user <user-id>",
	Short: "Delete a user's profile, insights and journey memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		log := logger.NewZapLogger(logger.Options{FilePath: cfg.App.LogFilePath, Level: cfg.App.LogLevel, FileOnly: true})
		defer log.Sync()

		journeys, _ := cmd.Flags().GetStringSlice("journey")
		convs, err := implementation.NewConversationRepository(db).FindAll(cmd.Context(), specification.ByUserID{UserID: args[0]})
		if err != nil {
			return err
		}
		for _, c := range convs {
			if c.JourneySlug != "" {
				journeys = append(journeys, c.JourneySlug)
			}
		}

		deleted := memory.DeleteUserMemories(cmd.Context(), implementation.NewMemoryStore(db), log, args[0], dedupe(journeys))
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d memory items\n", deleted)
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyRaw, "raw", false, "include system and tool messages")
	forgetUserCmd.Flags().StringSlice("journey", nil, "additional journey slugs to clear")
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
