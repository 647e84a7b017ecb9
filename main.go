package rankmaniac

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anatomi/rankmaniac/internal/pkg/rmmetrics"
)

var teamFlag = flag.StringP("team", "t", "", "Team `identifier`, used as namespace inside the bucket")
var bucketFlag = flag.String("bucket", "", "S3 `bucket` holding all team namespaces")
var backendFlag = flag.StringP("backend", "b", "", "Object store backend [s3,minio] - default s3")
var dataDir = flag.StringP("data", "d", "", "Local `directory` uploaded before the run")
var resultsDir = flag.StringP("results", "r", "", "Local `directory` receiving the results")
var inputFile = flag.StringP("input", "i", "", "Input `file` of the first iteration, relative to the data directory")
var iterations = flag.IntP("iterations", "n", 0, "Number of iterations to submit")
var metricsAddr = flag.String("metrics", "", "Serve prometheus metrics on `address`")
var verbose = flag.BoolP("verbose", "v", false, "Output verbose logs")

var undeploy = flag.Bool("undeploy", false, "Remove the managed EMR roles without running a job")

// flagKeys maps command line flags to their configuration keys.
var flagKeys = map[string]string{
	"team":       "team",
	"bucket":     "bucket",
	"backend":    "backend",
	"data":       "dataDir",
	"results":    "resultsDir",
	"input":      "input",
	"iterations": "maxIter",
	"metrics":    "metricsAddr",
	"verbose":    "verbose",
}

// Main uploads the data directory, runs all iterations on EMR and downloads
// the results.
func Main() {
	loadConfig()
	flag.Parse()
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, flag.Lookup(name)); err != nil {
			log.Fatalf("failed to bind flag %s: %+v", name, err)
		}
	}

	if viper.GetBool("verbose") || *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := New(viper.GetString("team"))
	if err != nil {
		return err
	}
	defer func() {
		if err := o.Close(); err != nil {
			log.Errorf("failed to close, you are on your own: %+v", err)
		}
	}()

	backend, isPlatform := o.executor.(platform)
	if *undeploy {
		if !isPlatform {
			return fmt.Errorf("backend can not be undeployed")
		}
		return backend.Undeploy()
	}
	if isPlatform {
		if err := backend.Deploy(); err != nil {
			return err
		}
	}

	c := o.config
	exe, err := loadExecutables(c.fs, c.DataDir)
	if err != nil {
		return err
	}
	if ok, _ := afero.Exists(c.fs, filepath.Join(c.DataDir, c.InputFile)); !ok {
		return fmt.Errorf("input %s not found in %s", c.InputFile, c.DataDir)
	}

	var metrics *rmmetrics.Metrics
	if addr := viper.GetString("metricsAddr"); addr != "" {
		reg := prometheus.NewRegistry()
		metrics = rmmetrics.New(reg)
		go func() {
			if err := rmmetrics.Serve(ctx, addr, reg); err != nil {
				log.Warnf("metrics endpoint stopped: %+v", err)
			}
		}()
	}

	if err := o.Upload(ctx, c.DataDir); err != nil {
		return err
	}
	if err := o.SetInputSource(c.InputFile); err != nil {
		return err
	}

	var progress ProgressSink = &BarProgress{}
	if viper.GetBool("verbose") {
		progress = &LogProgress{}
	}

	runner := NewRunner(o, RunConfig{
		Iteration:       exe.Iteration(c.NumMappers, c.NumReducers),
		Iterations:      c.Iterations,
		Progress:        progress,
		Metrics:         metrics,
		SubmitBackoff:   c.SubmitBackoff,
		PollInterval:    c.PollInterval,
		ThrottleBackoff: c.ThrottleBackoff,
	})

	start := time.Now()
	outcome, err := runner.Run(ctx)
	stop()
	if err != nil {
		return err
	}
	log.Infof("Job flow %s after %s", outcome, time.Since(start))

	return collectResults(o, outcome, c.ResultsDir)
}

// collectResults downloads the tenant namespace into dir. An interrupted run
// still downloads, since the next Upload clears its partial outputs.
func collectResults(o *Orchestrator, outcome Outcome, dir string) error {
	if outcome == Interrupted {
		log.Infof("Downloading partial results into %s", dir)
	}
	return o.Download(context.Background(), dir)
}
