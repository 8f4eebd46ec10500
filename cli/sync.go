package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/wgsync/wgsync/config"
	"github.com/wgsync/wgsync/garmin"
	"github.com/wgsync/wgsync/logging"
	"github.com/wgsync/wgsync/sync"
	"github.com/wgsync/wgsync/withings"
)

const dateLayout = "2006-01-02"

// SyncAction is the default action: fetch, encode, export, upload.
func SyncAction(c *cli.Context) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(c.App.Name, c.Bool("verbose"), cfg.LogDir)
	if err != nil {
		return err
	}

	opts, err := buildOptions(
		c.String("from"), c.String("to"),
		c.Path("output-json"), c.Path("output-fit"),
		c.Bool("garmin"),
	)
	if err != nil {
		return err
	}

	source, err := withings.NewClient(cfg.Withings, cfg.TokenPath, logger)
	if err != nil {
		return err
	}
	if source.NeedsAuthorization() {
		code, err := promptForCode(c.App.Writer, os.Stdin, source.AuthCodeURL())
		if err != nil {
			return err
		}
		if err := source.Authorize(c.Context, code); err != nil {
			return errors.Wrap(err, "authorizing with Withings")
		}
	}

	var uploader sync.Uploader
	if opts.Upload {
		if uploader, err = garmin.NewClient(cfg.Garmin, cfg.SessionPath, logger); err != nil {
			return err
		}
	}

	return sync.New(source, uploader, logger).Run(c.Context, opts)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Read(path)
	}
	return config.FromEnv(), nil
}

// buildOptions translates flag values into sync options.
func buildOptions(fromStr, toStr, jsonPath, fitPath string, upload bool) (sync.Options, error) {
	opts := sync.Options{JSONPath: jsonPath, FITPath: fitPath, Upload: upload}

	if fromStr != "" {
		from, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return sync.Options{}, errors.Wrap(err, "parsing -f date")
		}
		opts.From = &from
	}
	if toStr != "" {
		to, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return sync.Options{}, errors.Wrap(err, "parsing -t date")
		}
		// Include the whole end day.
		to = to.Add(24*time.Hour - time.Second)
		opts.To = &to
	}
	if opts.From != nil && opts.To != nil && opts.To.Before(*opts.From) {
		return sync.Options{}, errors.New("-t date is before -f date")
	}
	return opts, nil
}

// promptForCode walks the user through the one-time Withings authorization.
// The code shown in the browser expires within about thirty seconds.
func promptForCode(out io.Writer, in io.Reader, authURL string) (string, error) {
	fmt.Fprintln(out, "Withings authorization required.")
	fmt.Fprintln(out, "Open this URL in your browser and paste the authorization code below.")
	fmt.Fprintln(out, "The code expires about 30 seconds after the page loads.")
	fmt.Fprintf(out, "\n%s\n\nCode: ", authURL)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no authorization code provided")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return "", errors.New("no authorization code provided")
	}
	return code, nil
}
