package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mx-space/console/internal/app"
	"github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/modules/storage/backup"
	jwtpkg "github.com/mx-space/console/internal/pkg/jwt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cliActor = "backupctl"

type rootFlags struct {
	ConfigPath string
	Verbose    bool
	Timeout    time.Duration
}

// NewRootCmd builds the backupctl command tree.
func NewRootCmd() *cobra.Command {
	root := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "backupctl",
		Short: "Operate console backups from the command line",
		Long: `backupctl creates, lists, deletes, restores and uploads console backups
using the same configuration file as the server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&root.ConfigPath, "config", config.DefaultConfigPath, "Path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&root.Verbose, "verbose", "v", false, "Log progress to stderr")
	cmd.PersistentFlags().DurationVar(&root.Timeout, "timeout", 30*time.Minute, "Abort the operation after this long")

	cmd.AddCommand(newCreateCmd(root))
	cmd.AddCommand(newListCmd(root))
	cmd.AddCommand(newDeleteCmd(root))
	cmd.AddCommand(newRestoreCmd(root))
	cmd.AddCommand(newUploadCmd(root))
	cmd.AddCommand(newTokenCmd(root))
	return cmd
}

// withService loads config, opens the backup service and runs fn under the
// root timeout.
func withService(cmd *cobra.Command, root *rootFlags, fn func(ctx context.Context, svc *backup.Service) error) error {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if root.Verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	svc, closeFn, err := app.OpenBackups(logger, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), root.Timeout)
	defer cancel()
	return fn(ctx, svc)
}

func newCreateCmd(root *rootFlags) *cobra.Command {
	var collections, formats []string
	var auto bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup",
		Long:  `Exports every configured collection (or --collections) into daily/ and writes a manifest into logs/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := backup.ParseFormats(formats)
			if err != nil {
				return err
			}
			backupType := backup.TypeManual
			if auto {
				backupType = backup.TypeAuto
			}
			return withService(cmd, root, func(ctx context.Context, svc *backup.Service) error {
				m, err := svc.CreateBackup(ctx, backup.WriteOptions{
					Type:        backupType,
					Collections: collections,
					Formats:     parsed,
				}, cliActor, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d collections\t%d records\n",
					backup.BackupID(backup.TokenFromTimestamp(m.Timestamp)), m.Collections, m.TotalRecords)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "Collections to export (default: backup.collections)")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "Formats to write: sql, bson, excel (default: backup.formats)")
	cmd.Flags().BoolVar(&auto, "auto", false, "Mark the backup as automatic")
	return cmd
}

func newListCmd(root *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent backups",
		Long:  `Prints the most recent backup manifests, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, root, func(ctx context.Context, svc *backup.Service) error {
				items, err := svc.Catalog.History(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), items)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tSIZE\tRECORDS\tCOLLECTIONS")
				for _, item := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						item.ID, item.Type, item.Size, item.RecordCount, strings.Join(item.Collections, ","))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newDeleteCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete every file of a backup",
		Long:  `Removes each file in daily/ and logs/ whose name contains the backup's timestamp token.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, root, func(ctx context.Context, svc *backup.Service) error {
				res, err := svc.DeleteBackup(ctx, args[0], cliActor, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d files\n", res.FilesDeleted)
				return nil
			})
		},
	}
}

func newRestoreCmd(root *rootFlags) *cobra.Command {
	var req backup.RestoreRequest
	cmd := &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Restore a backup into the table-store",
		Long: `Restores every collection of a backup, or only --collection. Without
--overwrite existing rows are kept and duplicates are reported per row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.BackupID = args[0]
			req.Actor = cliActor
			return withService(cmd, root, func(ctx context.Context, svc *backup.Service) error {
				res, err := svc.Engine.Restore(ctx, req)
				if err != nil {
					if res != nil {
						_ = writeJSON(cmd.OutOrStdout(), res)
					}
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if failed := res.Failed(); failed > 0 {
					return fmt.Errorf("%d of %d collections failed", failed, res.Collections)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Format, "format", "", "Artifact format to read: sql, bson or excel (default: best available)")
	cmd.Flags().StringVar(&req.CollectionID, "collection", "", "Restore only this collection")
	cmd.Flags().BoolVar(&req.Overwrite, "overwrite", false, "Delete existing rows before inserting")
	return cmd
}

func newUploadCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <backup-id>",
		Short: "Copy a backup to S3",
		Long:  `Uploads the manifest and every artifact of a backup to the configured S3 bucket.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, root, func(ctx context.Context, svc *backup.Service) error {
				keys, err := svc.UploadOffsite(ctx, args[0])
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
}

func newTokenCmd(root *rootFlags) *cobra.Command {
	var user string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token",
		Long:  `Signs a JWT with the configured jwt_secret for calling the backup API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.ConfigPath)
			if err != nil {
				return err
			}
			if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
				jwtpkg.SetSecret(secret)
			}
			token, err := jwtpkg.Sign(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "admin", "Subject of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
