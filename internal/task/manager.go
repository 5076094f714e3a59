package task

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// TaskConfig represents the structure of tasks YAML file
type TaskConfig struct {
	Tasks []struct {
		TaskName    string `yaml:"task_name"`
		Wallet      string `yaml:"wallet"`
		Operation   string `yaml:"operation"`
		Token       string `yaml:"token"`
		Amount      string `yaml:"amount"`
		Percent     int    `yaml:"percent"`
		Name        string `yaml:"name"`
		Symbol      string `yaml:"symbol"`
		MetadataURI string `yaml:"metadata_uri"`
		InitialBuy  string `yaml:"initial_buy"`
	} `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("tasks")}
}

// LoadTasks reads tasks from a YAML file. Invalid entries are skipped
// with a warning; an empty result is an error.
func (m *Manager) LoadTasks(path string) ([]*Task, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for tasks file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseTasks(data)
}

// ParseTasks parses tasks YAML content.
func (m *Manager) ParseTasks(data []byte) ([]*Task, error) {
	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	tasks := make([]*Task, 0, len(config.Tasks))
	for i, td := range config.Tasks {
		op, err := parseOperation(td.Operation)
		if err != nil {
			m.logger.Warn("Skipping invalid task", zap.String("task_name", td.TaskName), zap.Error(err))
			continue
		}

		task := &Task{
			ID:          i,
			TaskName:    td.TaskName,
			WalletName:  td.Wallet,
			Operation:   op,
			Amount:      td.Amount,
			Percent:     td.Percent,
			Name:        td.Name,
			Symbol:      td.Symbol,
			MetadataURI: td.MetadataURI,
			InitialBuy:  td.InitialBuy,
			CreatedAt:   time.Now(),
		}
		if td.Token != "" {
			if !common.IsHexAddress(td.Token) {
				m.logger.Warn("Skipping task with invalid token address",
					zap.String("task_name", td.TaskName),
					zap.String("token", td.Token))
				continue
			}
			task.Token = common.HexToAddress(td.Token)
		}

		if err := task.Validate(); err != nil {
			m.logger.Warn("Skipping invalid task", zap.String("task_name", td.TaskName), zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks loaded")
	}

	m.logger.Info("Loaded tasks", zap.Int("count", len(tasks)))
	return tasks, nil
}
