package rankmaniac

import (
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/anatomi/rankmaniac/internal/pkg/rmstore"
)

func loadConfig() {
	viper.SetConfigName("rankmaniacrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.rankmaniac")

	setupDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		log.Debugf("Config Read %+v", err)
	}

	viper.SetEnvPrefix("rankmaniac")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"backend":        "s3",
		"uriScheme":      "s3",
		"region":         "us-west-2",
		"clusterSize":    1,
		"chunkSize":      rmstore.DefaultChunkSize, // bytes read when testing for the terminal marker
		"maxConcurrency": 8,                        // parallel transfers
		"maxIter":        50,
		"mappers":        1,
		"reducers":       1,
		"input":          "input.txt",
		"dataDir":        "data",
		"resultsDir":     "results",
		"verbose":        false,
		"metricsAddr":    "",

		"emrReleaseLabel": "emr-6.2.0",
		"emrInstanceType": "m5.xlarge",
		"emrServiceRole":  "EMR_DefaultRole",
		"emrJobFlowRole":  "EMR_EC2_DefaultRole",
		"emrManageRoles":  false,
		"emrKeepAlive":    false, // a kept alive cluster never reaches COMPLETED
		"streamingJar":    "",

		"submitBackoff":   "10s",
		"pollInterval":    "20s",
		"throttleBackoff": "60s",
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"verbose": "v",
		"team":    "t",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}

// config is the resolved configuration of one Orchestrator.
type config struct {
	Tenant  string `mapstructure:"team"`
	Bucket  string `mapstructure:"bucket"`
	Backend string `mapstructure:"backend"`
	Region  string `mapstructure:"region"`

	ClusterSize    int   `mapstructure:"clusterSize"`
	ChunkSize      int64 `mapstructure:"chunkSize"`
	MaxConcurrency int   `mapstructure:"maxConcurrency"`

	ReleaseLabel string `mapstructure:"emrReleaseLabel"`
	InstanceType string `mapstructure:"emrInstanceType"`
	ServiceRole  string `mapstructure:"emrServiceRole"`
	JobFlowRole  string `mapstructure:"emrJobFlowRole"`
	ManageRoles  bool   `mapstructure:"emrManageRoles"`
	KeepAlive    bool   `mapstructure:"emrKeepAlive"`
	StreamingJar string `mapstructure:"streamingJar"`

	Iterations  int    `mapstructure:"maxIter"`
	NumMappers  int    `mapstructure:"mappers"`
	NumReducers int    `mapstructure:"reducers"`
	InputFile   string `mapstructure:"input"`
	DataDir     string `mapstructure:"dataDir"`
	ResultsDir  string `mapstructure:"resultsDir"`

	SubmitBackoff   time.Duration `mapstructure:"submitBackoff"`
	PollInterval    time.Duration `mapstructure:"pollInterval"`
	ThrottleBackoff time.Duration `mapstructure:"throttleBackoff"`

	store    rmstore.ObjectStore
	executor executor
	fs       afero.Fs
	now      func() time.Time
}

// newConfig loads settings files and environment and decodes them into a config.
func newConfig() (*config, error) {
	loadConfig()

	c := &config{}
	err := viper.Unmarshal(c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Executables names the mapper and reducer files of both stages.
type Executables struct {
	ComputeMapper  string
	ComputeReducer string
	VerifyMapper   string
	VerifyReducer  string
}

// loadExecutables reads the Rankmaniac section of 'dir/rankmaniac.cfg'.
// Missing files or keys fall back to the default script names.
func loadExecutables(fs afero.Fs, dir string) (Executables, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(filepath.Join(dir, "rankmaniac.cfg"))
	v.SetConfigType("ini")
	v.SetDefault("rankmaniac.pagerank_map", "pagerank_map.py")
	v.SetDefault("rankmaniac.pagerank_reduce", "pagerank_reduce.py")
	v.SetDefault("rankmaniac.process_map", "process_map.py")
	v.SetDefault("rankmaniac.process_reduce", "process_reduce.py")

	if ok, _ := afero.Exists(fs, filepath.Join(dir, "rankmaniac.cfg")); ok {
		if err := v.ReadInConfig(); err != nil {
			return Executables{}, err
		}
	}

	// ini keys are stored flat as 'section.key', so they are read one by one
	return Executables{
		ComputeMapper:  v.GetString("rankmaniac.pagerank_map"),
		ComputeReducer: v.GetString("rankmaniac.pagerank_reduce"),
		VerifyMapper:   v.GetString("rankmaniac.process_map"),
		VerifyReducer:  v.GetString("rankmaniac.process_reduce"),
	}, nil
}

// Iteration returns the iteration descriptor running exe with the given
// compute parallelism.
func (exe Executables) Iteration(mappers, reducers int) Iteration {
	return Iteration{
		ComputeMapper:  exe.ComputeMapper,
		ComputeReducer: exe.ComputeReducer,
		VerifyMapper:   exe.VerifyMapper,
		VerifyReducer:  exe.VerifyReducer,
		Parallelism:    Parallelism{Mappers: mappers, Reducers: reducers},
	}
}

// Option configures an Orchestrator created by New.
type Option func(c *config)

// WithBucket sets the bucket holding all tenant namespaces.
func WithBucket(bucket string) Option {
	return func(c *config) {
		c.Bucket = bucket
	}
}

// WithBackend selects the object store backend, "s3" or "minio".
func WithBackend(backend string) Option {
	return func(c *config) {
		c.Backend = backend
	}
}

// WithClusterSize sets the instance count of new job flows.
func WithClusterSize(size int) Option {
	return func(c *config) {
		c.ClusterSize = size
	}
}

// WithMaxConcurrency bounds parallel transfers.
func WithMaxConcurrency(n int) Option {
	return func(c *config) {
		c.MaxConcurrency = n
	}
}

// WithObjectStore uses store instead of one created from the backend setting.
func WithObjectStore(store rmstore.ObjectStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithFs sets the local filesystem used by Upload and Download.
func WithFs(fs afero.Fs) Option {
	return func(c *config) {
		c.fs = fs
	}
}

func withExecutor(e executor) Option {
	return func(c *config) {
		c.executor = e
	}
}

func withClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}
