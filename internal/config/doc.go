// Package config provides configuration loading, merging, and path
// management for TandemAI.
//
// # Configuration Loading
//
// Load merges configuration from multiple sources in priority order:
//
//  1. Global config (~/.config/tandemai/tandemai.json[c])
//  2. Project config (<directory>/.tandemai/tandemai.json[c])
//  3. .env file in the project directory (github.com/joho/godotenv)
//  4. Environment variables (TANDEMAI_MODEL, TANDEMAI_SMALL_MODEL,
//     TANDEMAI_SANDBOX_ROOT, and provider API keys)
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with comments) are supported; JSONC files
// are stripped of // and /* */ comments with a small regexp pass before
// unmarshaling.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/tandemai (XDG_DATA_HOME)
//   - Config: ~/.config/tandemai (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/tandemai (XDG_CACHE_HOME)
//   - State: ~/.local/state/tandemai (XDG_STATE_HOME)
package config
