package configs

import (
	"github.com/sardine-ai/go-installer-config/model"
	"path/filepath"
	"strings"
)

// Channel config files.
const (
	UserConfigTelegram  = "user_config_telegram.ini"
	UserConfigEmail     = "user_config_email.ini"
	UserConfigTwilio    = "user_config_twilio.ini"
	UserConfigPagerDuty = "user_config_pagerduty.ini"
	UserConfigOpsGenie  = "user_config_opsgenie.ini"
)

// Chain config files.
const (
	UserConfigNodes    = "user_config_nodes.ini"
	UserConfigRepos    = "user_config_repos.ini"
	UserConfigKMS      = "user_config_kms.ini"
	UserConfigChannels = "user_config_channels.ini"
	UserConfigAlerts   = "user_config_alerts.ini"
)

// Other config files. Alerts is shared with the chain category.
const (
	UserConfigSystems = "user_config_systems.ini"
)

// ConfigDir is the directory under the install root holding every config file.
const ConfigDir = "config"

var (
	channelsLocation = filepath.Join(ConfigDir, "channels")
	chainsLocation   = filepath.Join(ConfigDir, "chains")
	othersLocation   = filepath.Join(ConfigDir, "others")
)

var allowedFiles = map[model.Category][]string{
	model.Channel: {
		UserConfigTelegram, UserConfigEmail, UserConfigTwilio,
		UserConfigPagerDuty, UserConfigOpsGenie,
	},
	model.Chain: {
		UserConfigNodes, UserConfigRepos, UserConfigKMS, UserConfigChannels,
		UserConfigAlerts,
	},
	model.Other: {UserConfigSystems, UserConfigAlerts},
}

// AllowedFiles returns a copy of the allow-list for category.
func AllowedFiles(category model.Category) ([]string, error) {
	files, ok := allowedFiles[category]
	if !ok {
		return nil, ErrInvalidConfigType
	}
	return append([]string(nil), files...), nil
}

// IsFilenameValid reports whether file may be stored under category.
func IsFilenameValid(category model.Category, file string) bool {
	for _, f := range allowedFiles[category] {
		if f == file {
			return true
		}
	}
	return false
}

// ChainsLocation returns the directory holding one sub-directory per chain of
// the given family.
func ChainsLocation(family model.ChainFamily) (string, error) {
	switch family {
	case model.Cosmos, model.Substrate:
		return filepath.Join(chainsLocation, string(family)), nil
	default:
		return "", ErrInvalidBaseChain
	}
}

// ResolvePath returns the path, relative to the install root, of a config
// file. Only allow-listed files resolve, and the result never leaves the
// config directory of its category.
func ResolvePath(category model.Category, file, chainName string, family model.ChainFamily) (string, error) {
	var dir string
	switch category {
	case model.Channel:
		dir = channelsLocation
	case model.Chain:
		base, err := ChainsLocation(family)
		if err != nil {
			return "", err
		}
		if !validSegment(chainName) {
			return "", ErrInvalidChainName
		}
		dir = filepath.Join(base, chainName)
	case model.Other:
		dir = othersLocation
	default:
		return "", ErrInvalidConfigType
	}
	if !IsFilenameValid(category, file) {
		return "", ErrInvalidFilename
	}
	return filepath.Join(dir, file), nil
}

// ResolveTarget is ResolvePath for a Target.
func ResolveTarget(t model.Target) (string, error) {
	return ResolvePath(t.Category, t.File, t.ChainName, t.ChainFamily)
}

// validSegment accepts a single, non-empty path element.
func validSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
