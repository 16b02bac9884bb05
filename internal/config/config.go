package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "taskman.db"
	DefaultLogName        = "taskman.log"
	appDirName            = "taskman"
)

type Keymap struct {
	Quit       string `toml:"quit"`
	Up         string `toml:"up"`
	Down       string `toml:"down"`
	Select     string `toml:"select"`
	Confirm    string `toml:"confirm"`
	Cancel     string `toml:"cancel"`
	AddTask    string `toml:"add_task"`
	AddSubtask string `toml:"add_subtask"`
	Edit       string `toml:"edit"`
	Delete     string `toml:"delete"`
	NextPanel  string `toml:"next_panel"`
	PrevPanel  string `toml:"prev_panel"`
	AddRelated string `toml:"add_related"`
	Open       string `toml:"open"`
	Note       string `toml:"note"`
	Search     string `toml:"search"`
	Report     string `toml:"report"`
	Theme      string `toml:"theme"`
	Sort       string `toml:"sort"`
}

type Config struct {
	DBPath   string `toml:"db_path"`
	LogPath  string `toml:"log_path"`
	LogLevel string `toml:"log_level"`
	Theme    string `toml:"theme"`
	Editor   string `toml:"editor"`
	Keys     Keymap `toml:"keys"`
}

// ResolveConfigPath returns TASKMAN_CONFIG when set, otherwise the file
// under the user config directory.
func ResolveConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("TASKMAN_CONFIG")); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDirName, DefaultConfigFileName)
}

func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig(filepath.Dir(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		applyEnv(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// the log file follows the database unless the file pins it
	cfg.LogPath = ""
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(path), DefaultDBName)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(filepath.Dir(cfg.DBPath), DefaultLogName)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TASKMAN_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TASKMAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKMAN_EDITOR"); v != "" {
		cfg.Editor = v
	}
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig(dir string) Config {
	return Config{
		DBPath:   filepath.Join(dir, DefaultDBName),
		LogPath:  filepath.Join(dir, DefaultLogName),
		LogLevel: "info",
		Theme:    "normal",
		Keys: Keymap{
			Quit:       "q",
			Up:         "k",
			Down:       "j",
			Select:     " ",
			Confirm:    "enter",
			Cancel:     "esc",
			AddTask:    "a",
			AddSubtask: "A",
			Edit:       "e",
			Delete:     "d",
			NextPanel:  "tab",
			PrevPanel:  "shift+tab",
			AddRelated: "n",
			Open:       "o",
			Note:       "N",
			Search:     "/",
			Report:     "r",
			Theme:      "t",
			Sort:       "s",
		},
	}
}

// EditorCommand picks the editor used for notes: config, then $VISUAL,
// then $EDITOR, then a platform default.
func (c Config) EditorCommand() string {
	for _, v := range []string{c.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	if os.PathSeparator == '\\' {
		return "notepad"
	}
	return "vi"
}
