package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/WCArena/pudscan/internal/api"
	"github.com/WCArena/pudscan/internal/scanner"
)

var uploadServer string

var uploadCmd = &cobra.Command{
	Use:   "upload <file|dir>...",
	Short: "Upload map files to a running pudscan API",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadServer, "server", "http://localhost:8080", "Base URL of the upload API")
}

func runUpload(cmd *cobra.Command, args []string) error {
	client := api.NewClient(uploadServer, viper.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		return err
	}

	paths, err := scanner.ExpandPaths(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range paths {
		resp, err := client.Upload(path)
		if err != nil {
			failed++
			Logger.Error("Upload failed", "path", path, "error", err)
			fmt.Fprintf(out, "%s  FAILED  %v\n", path, err)
			continue
		}
		switch resp.Status {
		case api.StatusAccepted:
			fmt.Fprintf(out, "%s  ACCEPTED  %s  %s\n", path, resp.Record.FileHash, resp.Record.Document.Name)
		default:
			fmt.Fprintf(out, "%s  REJECTED  %s: %s\n", path, resp.Rejection.Kind, resp.Rejection.Message)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}
