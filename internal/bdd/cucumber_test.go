package bdd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/cmd/serve"
	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/testutil/cucumber"
	"github.com/forgeos/graph-service/internal/testutil/testmongo"
)

func TestFeatures(t *testing.T) {
	mongoURL := testmongo.StartMongo(t)

	cfg := config.DefaultConfig()
	cfg.StoreURI = mongoURL
	cfg.DatabaseName = "graph_bdd"
	cfg.EmbedType = "none"
	cfg.BlobLocalPath = t.TempDir()
	cfg.Port = 0
	ctx := config.WithContext(context.Background(), &cfg)

	srv, err := serve.StartServer(ctx, &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	apiURL := fmt.Sprintf("http://localhost:%d", srv.Running.Port)

	featureFiles, err := filepath.Glob(filepath.Join("features", "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, featureFiles, "no feature files found")

	opts := cucumber.DefaultOptions()
	// Scenarios share one database; ClearAll makes them order-independent
	// but not concurrency-safe.
	opts.Concurrency = 1
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" {
			opts.Format = "pretty"
		}
	}

	for _, featurePath := range featureFiles {
		name := strings.TrimSuffix(filepath.Base(featurePath), ".feature")
		t.Run(name, func(t *testing.T) {
			o := opts
			o.TestingT = t
			o.Paths = []string{featurePath}
			defer cucumber.ApplyReportOptions(&o, t.Name())()

			suite := cucumber.NewTestSuite()
			suite.APIURL = apiURL
			suite.TestingT = t
			suite.Context = &cfg
			suite.DB = &MongoTestDB{DBURL: mongoURL, DBName: cfg.DatabaseName}

			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: suite.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
