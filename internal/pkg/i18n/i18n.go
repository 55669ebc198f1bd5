package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Translations map[string]string

// Catalog holds notification texts per locale, loaded from
// <localePath>/<locale>/notifications.yaml.
type Catalog struct {
	mu       sync.RWMutex
	locales  map[string]Translations
	fallback string
}

func NewCatalog(fallback string) *Catalog {
	return &Catalog{locales: make(map[string]Translations), fallback: fallback}
}

func (c *Catalog) Load(localePath string) error {
	entries, err := os.ReadDir(localePath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		locale := entry.Name()
		filePath := filepath.Join(localePath, locale, "notifications.yaml")

		data, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}
		if err := c.add(locale, data); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filePath, err)
		}
	}

	return nil
}

// LoadBytes registers one locale from raw YAML.
func (c *Catalog) LoadBytes(locale string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(locale, data)
}

func (c *Catalog) add(locale string, data []byte) error {
	var doc struct {
		Notifications Translations `yaml:"NOTIFICATIONS"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.locales[locale] = doc.Notifications
	return nil
}

// T looks the key up in locale, then in the fallback locale, and formats it
// with args. Unknown keys come back as the key itself.
func (c *Catalog) T(locale, key string, args ...interface{}) string {
	if c == nil {
		return key
	}
	format, ok := c.lookup(locale, key)
	if !ok || len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (c *Catalog) lookup(locale, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if trans, ok := c.locales[locale]; ok {
		if val, ok := trans[key]; ok {
			return val, true
		}
	}

	if locale != c.fallback {
		if trans, ok := c.locales[c.fallback]; ok {
			if val, ok := trans[key]; ok {
				return val, true
			}
		}
	}

	return key, false
}
