package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"casekeeper/internal/platform/kafka"
	auditpostgres "casekeeper/pkg/platform/audit/store/postgres"
)

var migrateFlags struct {
	partitions  int32
	replication int16
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create indexes, the audit outbox table, and the audit topic",
	RunE:  runMigrate,
}

func init() {
	f := migrateCmd.Flags()
	f.Int32Var(&migrateFlags.partitions, "topic-partitions", 3, "Partitions for the audit topic")
	f.Int16Var(&migrateFlags.replication, "topic-replication", 1, "Replication factor for the audit topic")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := a.caseStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := a.policyStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := a.users.EnsureIndexes(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "mongo indexes ensured")

	if a.pg != nil {
		if _, err := a.pg.ExecContext(ctx, auditpostgres.Schema); err != nil {
			return fmt.Errorf("create audit outbox: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "audit outbox ensured")
	}
	if a.kafka != nil {
		if err := kafka.EnsureTopic(ctx, a.kafka, cfg.Kafka.AuditTopic, migrateFlags.partitions, migrateFlags.replication); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "topic %s ensured\n", cfg.Kafka.AuditTopic)
	}
	return nil
}
