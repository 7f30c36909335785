package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recserve/explain"
	"github.com/rushteam/recserve/feature"
	"github.com/rushteam/recserve/recall"
)

// Config 是服务的静态配置（YAML），进程启动时加载一次，之后只读。
type Config struct {
	Service struct {
		Listen    string `yaml:"listen"`
		KRecs     int    `yaml:"k_recs"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"service"`

	// RegisteredModels 是 /reco 允许的模型名；ExplainedModels 是 /explain 允许的模型名。
	// 注册表校验发生在 API 层，核心组件不重复校验。
	RegisteredModels []string `yaml:"registered_models"`
	ExplainedModels  []string `yaml:"explained_models"`

	Explain explain.Config `yaml:"explain"`

	Pipeline struct {
		Mode   string           `yaml:"mode"` // one_stage / two_stage / 空 = 未配置
		KNN    recall.KNNConfig `yaml:"knn"`
		Ranker RankerConfig     `yaml:"ranker"`
	} `yaml:"pipeline"`

	Data struct {
		InteractionsPath string `yaml:"interactions_path"`
		ItemsPath        string `yaml:"items_path"`
		ALSModelPath     string `yaml:"als_model_path"`
	} `yaml:"data"`

	Store struct {
		Backend string `yaml:"backend"` // memory / redis
		Redis   struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Filter struct {
		Expr string `yaml:"expr"` // CEL 表达式，空 = 不过滤
	} `yaml:"filter"`
}

// RankerConfig 声明两段式排序模型及其特征来源。
type RankerConfig struct {
	ModelPath      string   `yaml:"model_path"`
	FeatureColumns []string `yaml:"feature_columns"`
	Features       struct {
		Source    string              `yaml:"source"` // table / feast
		UsersPath string              `yaml:"users_path"`
		ItemsPath string              `yaml:"items_path"`
		Feast     feature.FeastConfig `yaml:"feast"`
	} `yaml:"features"`
}

// LoadFromYAML 从 YAML 文件加载配置并填充默认值。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Listen == "" {
		c.Service.Listen = ":8080"
	}
	if c.Service.KRecs <= 0 {
		c.Service.KRecs = 10
	}
	if c.Explain.MinScore == 0 && c.Explain.MaxScore == 0 {
		c.Explain.MinScore = 70
		c.Explain.MaxScore = 98
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Pipeline.KNN.TypeReco == "" {
		c.Pipeline.KNN.TypeReco = recall.TypeOnline
	}
}

func (c *Config) validate() error {
	if c.Explain.MaxScore < c.Explain.MinScore {
		return fmt.Errorf("config: explain.max_score below min_score")
	}
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Pipeline.Mode {
	case "", "one_stage", "two_stage":
	default:
		return fmt.Errorf("config: unknown pipeline mode %q", c.Pipeline.Mode)
	}
	if c.Pipeline.Mode == "two_stage" {
		if c.Pipeline.Ranker.ModelPath == "" {
			return fmt.Errorf("config: two_stage requires ranker.model_path")
		}
		if len(c.Pipeline.Ranker.FeatureColumns) == 0 {
			return fmt.Errorf("config: two_stage requires ranker.feature_columns")
		}
		switch c.Pipeline.Ranker.Features.Source {
		case "", "table", "feast":
		default:
			return fmt.Errorf("config: unknown feature source %q", c.Pipeline.Ranker.Features.Source)
		}
	}
	return nil
}
