package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lalith-99/chatarchive/internal/ingest"
	"github.com/lalith-99/chatarchive/internal/trigger"
)

func newIngestCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load exported batch files",
	}
	cmd.AddCommand(newIngestFileCmd(e))
	cmd.AddCommand(newIngestDirCmd(e))
	cmd.AddCommand(newIngestWatchCmd(e))
	cmd.AddCommand(newIngestNotifyCmd(e))
	return cmd
}

type archiveFlags struct {
	Archive string
	Keep    bool
}

func (f *archiveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Archive, "archive", "", "archive directory for loaded files (default INGEST_ARCHIVE_DIR)")
	cmd.Flags().BoolVar(&f.Keep, "keep", false, "leave loaded files in place")
}

func (f *archiveFlags) dir(e *env) string {
	switch {
	case f.Keep:
		return ""
	case f.Archive != "":
		return f.Archive
	default:
		return e.cfg.Ingest.ArchiveDir
	}
}

func parseKindFlag(kind string) (ingest.Kind, error) {
	if strings.TrimSpace(kind) == "" {
		return "", errors.New("--kind is required")
	}
	return ingest.ParseKind(kind)
}

func newIngestFileCmd(e *env) *cobra.Command {
	var (
		kind    string
		archive archiveFlags
	)

	cmd := &cobra.Command{
		Use:   "file --kind <users|channels|messages> <path>",
		Short: "Load one batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKindFlag(kind)
			if err != nil {
				return err
			}

			p, err := newPipeline(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.close()

			src := ingest.Source{Path: args[0], Kind: k}
			if dir := archive.dir(e); dir != "" {
				src.ArchivePath = filepath.Join(dir, filepath.Base(args[0]))
			}
			return report(cmd.OutOrStdout(), []ingest.Result{p.ingestor.Ingest(cmd.Context(), src)})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "entity kind the file carries")
	archive.register(cmd)
	return cmd
}

func newIngestDirCmd(e *env) *cobra.Command {
	var (
		kind    string
		source  string
		archive archiveFlags
	)

	cmd := &cobra.Command{
		Use:   "dir --kind <users|channels|messages> --source <dir>",
		Short: "Load every file in a directory, in name order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := parseKindFlag(kind)
			if err != nil {
				return err
			}
			if strings.TrimSpace(source) == "" {
				return errors.New("--source is required")
			}

			p, err := newPipeline(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.close()

			results, err := p.ingestor.IngestDir(cmd.Context(), source, k, archive.dir(e))
			if rerr := report(cmd.OutOrStdout(), results); rerr != nil && err == nil {
				err = rerr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "entity kind every file carries")
	cmd.Flags().StringVar(&source, "source", "", "directory of batch files")
	archive.register(cmd)
	return cmd
}

func newIngestWatchCmd(e *env) *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load files as file-dropped events arrive over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(ctx, e)
			if err != nil {
				return err
			}
			defer p.close()

			sub, err := trigger.NewSubscriber(ctx, e.cfg.NATSURL, e.cfg.NATSStream, e.logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			return sub.Run(ctx, durable, func(ctx context.Context, ev trigger.Event) {
				src, err := eventSource(ev, e.cfg.Ingest.ArchiveDir)
				if err != nil {
					e.logger.Error("ignoring event", zap.String("path", ev.Path), zap.Error(err))
					return
				}
				// Outcome is logged by the ingestor.
				p.ingestor.Ingest(ctx, src)
			})
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "chatarchive-ingest", "JetStream durable consumer name")
	return cmd
}

func newIngestNotifyCmd(e *env) *cobra.Command {
	var (
		kind        string
		archivePath string
	)

	cmd := &cobra.Command{
		Use:   "notify --kind <users|channels|messages> <path>",
		Short: "Announce a dropped batch file to watchers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKindFlag(kind)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			pub, err := trigger.NewPublisher(cmd.Context(), e.cfg.NATSURL, e.cfg.NATSStream)
			if err != nil {
				return err
			}
			defer pub.Close()

			ev := trigger.Event{Kind: string(k), Path: path, ArchivePath: archivePath}
			if err := pub.Publish(cmd.Context(), ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s (%s)\n", path, k)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "entity kind the file carries")
	cmd.Flags().StringVar(&archivePath, "archive-path", "", "where the watcher moves the file once loaded")
	return cmd
}
