// Package data holds the static site data shipped with the binary:
// ambassadors and the Twitch and YouTube channels the site integrates with.
package data

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed ambassadors.yaml channels.yaml
var embedded embed.FS

// Ambassador is an animal ambassador living at the sanctuary
type Ambassador struct {
	// Key is the camelCase identifier used for profile URLs
	Key     string `yaml:"-"`
	Name    string `yaml:"name"`
	Species string `yaml:"species"`
	// Birth is YYYY-MM-DD when fully known, otherwise a partial date
	Birth   string `yaml:"birth"`
	Retired bool   `yaml:"retired"`
}

// Active reports whether the ambassador is still at the sanctuary
func (a Ambassador) Active() bool {
	return !a.Retired
}

// TwitchChannel is a Twitch channel whose schedule mirrors the calendar
type TwitchChannel struct {
	Key        string   `yaml:"-"`
	Username   string   `yaml:"username"`
	Categories []string `yaml:"categories"`
}

// Includes reports whether events of category belong on this channel's schedule
func (c TwitchChannel) Includes(category string) bool {
	for _, cat := range c.Categories {
		if strings.EqualFold(cat, category) {
			return true
		}
	}
	return false
}

// YouTubeChannel is a channel served by the latest-video route
type YouTubeChannel struct {
	Key  string `yaml:"-"`
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Data is the parsed static data set
type Data struct {
	Ambassadors     []Ambassador
	TwitchChannels  map[string]TwitchChannel
	YouTubeChannels map[string]YouTubeChannel
}

// Load parses the embedded data files
func Load() (*Data, error) {
	return LoadFS(embedded)
}

// LoadFS parses ambassadors.yaml and channels.yaml from fsys
func LoadFS(fsys fs.FS) (*Data, error) {
	raw, err := fs.ReadFile(fsys, "ambassadors.yaml")
	if err != nil {
		return nil, fmt.Errorf("read ambassadors: %w", err)
	}

	ambassadors := map[string]Ambassador{}
	if err := yaml.Unmarshal(raw, &ambassadors); err != nil {
		return nil, fmt.Errorf("parse ambassadors: %w", err)
	}

	raw, err = fs.ReadFile(fsys, "channels.yaml")
	if err != nil {
		return nil, fmt.Errorf("read channels: %w", err)
	}

	var channels struct {
		Twitch  map[string]TwitchChannel  `yaml:"twitch"`
		YouTube map[string]YouTubeChannel `yaml:"youtube"`
	}
	if err := yaml.Unmarshal(raw, &channels); err != nil {
		return nil, fmt.Errorf("parse channels: %w", err)
	}

	d := &Data{
		TwitchChannels:  make(map[string]TwitchChannel, len(channels.Twitch)),
		YouTubeChannels: make(map[string]YouTubeChannel, len(channels.YouTube)),
	}

	for _, key := range sortedKeys(ambassadors) {
		a := ambassadors[key]
		a.Key = key
		d.Ambassadors = append(d.Ambassadors, a)
	}

	for key, c := range channels.Twitch {
		if c.Username == "" {
			return nil, fmt.Errorf("twitch channel %q: missing username", key)
		}
		c.Key = key
		d.TwitchChannels[key] = c
	}

	for key, c := range channels.YouTube {
		if c.ID == "" {
			return nil, fmt.Errorf("youtube channel %q: missing id", key)
		}
		c.Key = key
		d.YouTubeChannels[key] = c
	}

	return d, nil
}

// YouTubeKeys returns the known YouTube channel keys in sorted order
func (d *Data) YouTubeKeys() []string {
	return sortedKeys(d.YouTubeChannels)
}

// TwitchKeys returns the known Twitch channel keys in sorted order
func (d *Data) TwitchKeys() []string {
	return sortedKeys(d.TwitchChannels)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
