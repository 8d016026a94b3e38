package root

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sget "github.com/replicate/sget/pkg"
	"github.com/replicate/sget/pkg/cli"
	"github.com/replicate/sget/pkg/config"
	"github.com/replicate/sget/pkg/download"
	"github.com/replicate/sget/pkg/progress"
)

const rootLongDesc = `
sget

SGet is a deliberately simple, serial file downloader built in Go. It fetches a
single resource over a raw HTTP/1.1 exchange in fixed-size byte-range windows,
one connection per request, reassembles the chunks in order, and writes them
straight through to the destination.

Every byte written is also fed into a running SHA-256, and the final digest is
printed when the download completes so it can be compared by hand against the
digest displayed by the serving side. The output is a byte-for-byte copy of the
remote resource; sget never transforms, extracts, or reorders what it receives.

A chunk fetch that yields no data is retried at the same offset. By default it
is retried indefinitely, faithful to the tool sget replaces; pass --retries to
bound the attempts with a backoff schedule instead.
`

func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sget [flags] <url> <dest>",
		Short: "sget",
		Long:  rootLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.PersistentStartupProcessFlags()
		},
		RunE:    runRootCMD,
		Args:    cobra.ExactArgs(2),
		Example: `  sget http://127.0.0.1:8080/weights.bin weights.bin`,
	}
	cmd.SetUsageTemplate(cli.UsageTemplate)
	if err := config.AddRootPersistentFlags(cmd); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return cmd
}

func runRootCMD(cmd *cobra.Command, args []string) error {
	// After we run through the PreRun functions we want to silence usage from being printed
	// on all errors
	cmd.SilenceUsage = true

	urlString := args[0]
	dest := args[1]

	log.Info().Str("url", urlString).
		Str("dest", dest).
		Str("chunk_size", viper.GetString(config.OptChunkSize)).
		Msg("Initiating")

	if err := cli.EnsureDestinationNotExist(dest); err != nil {
		return err
	}

	return rootExecute(cmd.Context(), urlString, dest)
}

// rootExecute is the main function of the program and encapsulates the general logic
// returns any/all errors to the caller.
func rootExecute(ctx context.Context, urlString, dest string) error {
	chunkSize, err := humanize.ParseBytes(viper.GetString(config.OptChunkSize))
	if err != nil {
		return fmt.Errorf("unable to parse chunk size: %w", err)
	}

	opts := download.Options{
		ChunkSize:      int64(chunkSize),
		ConnectTimeout: viper.GetDuration(config.OptConnTimeout),
		MaxRetries:     viper.GetInt(config.OptRetries),
	}

	var bar *progress.Bar
	if !viper.GetBool(config.OptNoProgress) && dest != "-" {
		name := filepath.Base(dest)
		// The total is only known once discovery completes, so the bar is
		// created on the first progress notice.
		opts.Progress = func(position, total int64) {
			if bar == nil {
				bar = progress.NewBar(os.Stderr, name, total)
			}
			bar.Set(position)
		}
	}

	getter := sget.Getter{
		Downloader: download.GetSerialMode(opts),
	}

	result, _, err := getter.DownloadFile(ctx, urlString, dest)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		return err
	}

	// Printed on stdout for manual comparison with the digest the serving
	// side displays.
	fmt.Printf("sha256:%s\n", result.Digest)
	return nil
}
