package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: zeebe:26500
database:
  postgres:
    host: db
    database: eduprima
    user: admin
  redis:
    address: redis:6379
workers:
  score-tutors:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "eduprima-workers", cfg.App.Name)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, CandidateSourceStore, cfg.Matching.CandidateSource)
	assert.Equal(t, 25.0, cfg.Matching.DefaultRadiusKm)
	assert.Equal(t, 0.35, cfg.Matching.ExperienceStep)
	assert.Equal(t, "tutor_search_view", cfg.Matching.CandidateViewName)
	assert.Equal(t, 4, cfg.Deletion.PreviewFanOutSize)
	assert.Equal(t, ":8080", cfg.Server.Address)

	worker := cfg.Workers["score-tutors"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("EDU_TEST_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
camunda:
  broker_address: zeebe:26500
database:
  postgres:
    host: db
    database: eduprima
    user: admin
    password: ${EDU_TEST_DB_PASSWORD}
  redis:
    address: redis:6379
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: db\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "missing redis",
			body: `
camunda:
  broker_address: zeebe:26500
database:
  postgres:
    host: db
    database: eduprima
    user: admin
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "unknown candidate source",
			body: minimalYAML + `
matching:
  candidate_source: solr
`,
			wantErr: "matching.candidate_source",
		},
		{
			name: "elasticsearch source without addresses",
			body: minimalYAML + `
matching:
  candidate_source: elasticsearch
`,
			wantErr: "database.elasticsearch.addresses is required",
		},
		{
			name: "identity removal without keycloak",
			body: minimalYAML + `
deletion:
  remove_identity: true
`,
			wantErr: "auth.keycloak.url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"preview-user-deletion": {Enabled: false, Timeout: 1000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "preview-user-deletion"))
	assert.True(t, IsWorkerEnabled(cfg, "score-tutors"))

	fallback := GetWorkerConfig(cfg, "score-tutors")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 30000, fallback.Timeout)
	assert.Equal(t, 1000, GetWorkerConfig(cfg, "preview-user-deletion").Timeout)
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "edu", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=edu sslmode=require", p.GetDSN())
}
