// Package models locates and downloads whisper ggml model files.
package models

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/chaz8081/rose/internal/config"
)

// Candidates returns the file names tried for a variant, most preferred
// first. English-only weights win over multilingual ones.
func Candidates(variant string) []string {
	switch variant {
	case "large":
		return []string{"ggml-large-v3.bin", "ggml-large.bin", "ggml-large-v2.bin"}
	case "tiny", "base", "small", "medium":
		return []string{"ggml-" + variant + ".en.bin", "ggml-" + variant + ".bin"}
	default:
		return Candidates("tiny")
	}
}

func prefix(variant string) string {
	switch variant {
	case "tiny", "base", "small", "medium", "large":
		return "ggml-" + variant
	default:
		return "ggml-tiny"
	}
}

// Resolve finds the model file for variant in the first directory that has
// one: an exact candidate name, else any ggml-<variant>*.bin. When nothing
// is found it returns the preferred path in the first directory and false.
func Resolve(variant string, dirs ...string) (string, bool) {
	for _, dir := range dirs {
		if p, ok := findInDir(variant, dir); ok {
			return p, true
		}
	}
	if len(dirs) == 0 {
		return Candidates(variant)[0], false
	}
	return filepath.Join(dirs[0], Candidates(variant)[0]), false
}

func findInDir(variant, dir string) (string, bool) {
	for _, name := range Candidates(variant) {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return absolute(p), true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	pre := prefix(variant)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name := e.Name(); strings.HasPrefix(name, pre) && filepath.Ext(name) == ".bin" {
			return absolute(filepath.Join(dir, name)), true
		}
	}
	return "", false
}

// Fallbacks lists every model found in dirs, smallest variant first.
// The caller tries them in order when the configured model fails to load.
func Fallbacks(dirs ...string) []string {
	var out []string
	for _, v := range config.Variants {
		if p, ok := Resolve(v, dirs...); ok {
			out = append(out, p)
		}
	}
	return out
}

// SearchDirs returns the directories searched for cfg's model: the
// configured dir, then ./models.
func SearchDirs(cfg config.ModelConfig) []string {
	dirs := []string{}
	if cfg.Dir != "" {
		dirs = append(dirs, cfg.Dir)
	}
	return append(dirs, "models")
}

// PathFor returns the model file cfg selects: the explicit path if set,
// else the resolved variant. ok is false when no file was found.
func PathFor(cfg config.ModelConfig) (string, bool) {
	if cfg.Path != "" {
		_, err := os.Stat(cfg.Path)
		return cfg.Path, err == nil
	}
	return Resolve(cfg.Variant, SearchDirs(cfg)...)
}

func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
