package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/behaviour.report/internal/config"
	"github.com/banshee-data/behaviour.report/internal/db"
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/units"
)

func findCommand(parent *cobra.Command, name string) *cobra.Command {
	for _, cmd := range parent.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--log-format", "json"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"calibrate", "preprocess", "analyse", "classify", "process", "batch", "collate", "migrate", "serve", "version"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(rootCmd, name)
			require.NotNil(t, cmd, "%s command not found in rootCmd", name)
			assert.NotEmpty(t, cmd.Short)
		})
	}
}

func TestCommandHelp(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"calibrate", "px_per_mm"},
		{"preprocess", "refine_ids"},
		{"analyse", "thigmotaxis"},
		{"classify", "min_window_frames"},
		{"batch", "manifest"},
		{"collate", "configs_auto.csv"},
		{"serve", "/api/runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := findCommand(rootCmd, tt.name)
			require.NotNil(t, cmd)
			assert.Contains(t, cmd.Long, tt.want)
			assert.Contains(t, cmd.Long, "Examples:")
		})
	}
}

func TestMigrateSubcommands(t *testing.T) {
	migrate := findCommand(rootCmd, "migrate")
	require.NotNil(t, migrate)
	for _, name := range []string{"up", "down", "version", "force"} {
		assert.NotNil(t, findCommand(migrate, name), "migrate %s not found", name)
	}
}

func TestMigrateCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "behaviour.db")

	out, err := execute(t, "migrate", "up", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "schema at version 3 (dirty: false)\n", out)

	out, err = execute(t, "migrate", "down", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "schema at version 2 (dirty: false)\n", out)

	out, err = execute(t, "migrate", "version", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "version 2\n", out)

	_, err = execute(t, "migrate", "force", "two", "--db", path)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "behaviour dev\n"), out)
}

func TestCalibrateCommand(t *testing.T) {
	dir := t.TempDir()
	keys := keypoints.SchemaFor([]string{"mouse"}, []string{"body"}).Keys()
	keys = append(keys, keypoints.SchemaFor([]string{keypoints.SingleIndividual},
		[]string{"TopLeft", "TopRight"}).Keys()...)
	schema, err := keypoints.NewSchema(keys)
	require.NoError(t, err)
	tbl := keypoints.NewTable(schema, keypoints.ContiguousFrames(0, 20))
	tbl.Scorer = "DLC_test"
	for i, k := range schema.Keys() {
		for r := range tbl.Columns[i] {
			switch {
			case k.Field == keypoints.FieldLikelihood:
				tbl.Columns[i][r] = 1
			case k.Bodypart == "TopRight" && k.Field == keypoints.FieldX:
				tbl.Columns[i][r] = 300
			default:
				tbl.Columns[i][r] = 0
			}
		}
	}
	kpPath := filepath.Join(dir, "exp1.csv")
	cfgPath := filepath.Join(dir, "exp1.json")
	require.NoError(t, keypoints.WriteCSVFile(kpPath, tbl))
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"auto": {"fps": 10},
		"user": {"calculate_params": {"px_per_mm": {"dist_mm": 100}}}}`), 0644))

	out, err := execute(t, "calibrate", "--keypoints", kpPath, "--config", cfgPath, "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "px_per_mm:    3\n")
	assert.Contains(t, out, "start_frame:  0\n")
	assert.Contains(t, out, "stop_frame:   19\n")
	assert.Contains(t, out, "total_frames: 20\n")

	saveConfig = false
	saved, err := config.LoadExperimentConfig(cfgPath)
	require.NoError(t, err)
	require.NotNil(t, saved.Auto.PxPerMM)
	assert.Equal(t, 3.0, *saved.Auto.PxPerMM)
	require.NotNil(t, saved.Auto.StopFrame)
	assert.Equal(t, 19, *saved.Auto.StopFrame)
}

func TestCollateCommand(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exp1.json"), []byte(`{"auto": {"fps": 25}}`), 0644))
	manifest := filepath.Join(dir, "experiments.csv")
	require.NoError(t, os.WriteFile(manifest, []byte("name,keypoints,config,probs\nexp1,exp1.csv,exp1.json,\n"), 0644))

	got, err := execute(t, "collate", "--manifest", manifest, "--out", out)
	require.NoError(t, err)
	autoPath := filepath.Join(out, "collated", "configs_auto.csv")
	assert.Equal(t, autoPath+"\n", got, "exp1 was never processed so only the configs are collated")

	body, err := os.ReadFile(autoPath)
	require.NoError(t, err)
	assert.Equal(t, "experiment,fps,px_per_mm,start_frame,stop_frame,total_frames\nexp1,25,,,,\n", string(body))
}

func TestServeMux(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "behaviour.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = newServeMux(store, "furlongs")
	assert.Error(t, err)

	h, err := newServeMux(store, units.CMPS)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestExperimentNameFromPath(t *testing.T) {
	assert.Equal(t, "cage1", experimentNameFromPath("/data/raw/cage1.csv"))
	assert.Equal(t, "cage1.dlc", experimentNameFromPath("cage1.dlc.h5"))
	assert.Equal(t, "noext", experimentNameFromPath("noext"))
}
