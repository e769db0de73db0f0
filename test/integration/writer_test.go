//go:build integration

package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/agenthands/neobatch/internal/config"
	"github.com/agenthands/neobatch/internal/core"
	"github.com/agenthands/neobatch/internal/core/identity"
	"github.com/agenthands/neobatch/internal/core/model"
	"github.com/agenthands/neobatch/internal/driver"
)

func setup(t *testing.T) *config.Config {
	t.Helper()
	_ = godotenv.Load("../../.env")

	cfg, err := config.LoadOrDefault(os.Getenv("NEOBATCH_CONFIG"))
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyEnv())

	if os.Getenv("NEOBATCH_URL") == "" {
		t.Skip("Skipping integration test: NEOBATCH_URL not set")
	}
	return cfg
}

func TestWriterAgainstStore(t *testing.T) {
	cfg := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := zaptest.NewLogger(t)
	gw, err := driver.New(ctx, cfg.Store, logger)
	require.NoError(t, err)

	opts := core.OptionsFromConfig(cfg.Writer)
	opts.HighWaterMark = 3
	w := core.NewWriter(gw, identity.NewIndex(), opts, logger, nil)

	require.NoError(t, w.CreateIndexes(ctx, []model.IndexSpec{{Label: "Person", Key: identity.FingerprintKey}}))

	run := uuid.New().String()
	alice := &model.NodeEntity{Label: "Person", Attributes: map[string]any{"name": "Alice", "run": run}}
	bob := &model.NodeEntity{Label: "Person", Attributes: map[string]any{"name": "Bob", "run": run}}

	// The third write reaches the high water mark and flushes.
	require.NoError(t, w.Write(ctx, alice))
	require.NoError(t, w.Write(ctx, bob))
	require.NoError(t, w.Write(ctx, &model.RelationEntity{Type: "KNOWS", Start: alice, End: bob}))

	status := w.Status()
	require.NotNil(t, status.LastCycle)
	assert.Empty(t, status.LastCycle.Error)
	assert.Equal(t, 2, status.LastCycle.Nodes)
	assert.Equal(t, 1, status.LastCycle.Relations)

	// A later relation between known nodes creates no new nodes.
	require.NoError(t, w.Write(ctx, alice))
	require.NoError(t, w.Write(ctx, &model.RelationEntity{Type: "LIKES", Start: bob, End: alice}))
	require.NoError(t, w.Close(ctx))

	status = w.Status()
	assert.Equal(t, 0, status.LastCycle.Nodes)
	assert.Equal(t, 1, status.LastCycle.Duplicates)
	assert.Equal(t, 1, status.LastCycle.Relations)
	assert.Equal(t, 2, status.KnownIdentities)

	if !strings.HasPrefix(cfg.Store.URL, "bolt") && !strings.HasPrefix(cfg.Store.URL, "neo4j") {
		return
	}

	// Read the graph back over Bolt.
	d, err := neo4j.NewDriverWithContext(cfg.Store.URL, neo4j.BasicAuth(cfg.Store.Username, cfg.Store.Password, ""))
	require.NoError(t, err)
	defer d.Close(ctx)

	res, err := neo4j.ExecuteQuery(ctx, d,
		`MATCH (p:Person {run: $run}) RETURN count(p) AS nodes`,
		map[string]any{"run": run},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(cfg.Store.Database))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	nodes, _ := res.Records[0].Get("nodes")
	assert.EqualValues(t, 2, nodes)

	res, err = neo4j.ExecuteQuery(ctx, d,
		`MATCH (:Person {run: $run})-[r]->(:Person {run: $run}) RETURN type(r) AS type ORDER BY type`,
		map[string]any{"run": run},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(cfg.Store.Database))
	require.NoError(t, err)
	var types []string
	for _, rec := range res.Records {
		v, _ := rec.Get("type")
		types = append(types, v.(string))
	}
	assert.Equal(t, []string{"KNOWS", "LIKES"}, types)
}
