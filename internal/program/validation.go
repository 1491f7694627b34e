package program

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxSlugLength     = 50
	maxDescriptionLen = 500
	maxMessageIndex   = 63
	slugPattern       = `^[a-z0-9]+(?:-[a-z0-9]+)*$`
)

var slugRegex = regexp.MustCompile(slugPattern)

// ValidateProgram performs comprehensive validation on a program.
// Returns an error describing the first validation failure found.
func ValidateProgram(p *Program) error {
	if p == nil {
		return ErrInvalidProgram
	}

	// Validate name
	if err := ValidateName(p.Name); err != nil {
		return err
	}

	// Validate slug if provided (empty slug will be generated)
	if p.Slug != "" {
		if err := ValidateSlug(p.Slug); err != nil {
			return err
		}
	}

	// Validate description length
	if len(p.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidProgram, maxDescriptionLen)
	}

	// Validate source mode
	if _, err := transmitter.ParseSourceMode(string(p.Source)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}

	// Validate message index
	if p.Message < 0 || p.Message > maxMessageIndex {
		return fmt.Errorf("%w: message must be 0-%d", ErrInvalidProgram, maxMessageIndex)
	}

	// Validate channels
	if len(p.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", ErrInvalidChannels)
	}
	if len(p.Channels) > transmitter.ChannelCount {
		return fmt.Errorf("%w: exceeds %d channels", ErrInvalidChannels, transmitter.ChannelCount)
	}

	seen := make(map[int]struct{}, len(p.Channels))
	for i, ch := range p.Channels {
		if err := transmitter.ValidateChannel(ch.Channel); err != nil {
			return fmt.Errorf("%w: channel[%d]: %v", ErrInvalidChannels, i, err)
		}
		if err := transmitter.ValidateFrequency(ch.FrequencyHz); err != nil {
			return fmt.Errorf("%w: channel[%d]: %v", ErrInvalidChannels, i, err)
		}
		if _, dup := seen[ch.Channel]; dup {
			return fmt.Errorf("%w: channel %d listed twice", ErrInvalidChannels, ch.Channel)
		}
		seen[ch.Channel] = struct{}{}
	}

	return nil
}

// ValidateName checks if a program name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug checks if a slug format is valid.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: slug exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with hyphens", ErrInvalidSlug)
	}
	return nil
}

// GenerateSlug creates a URL-safe slug from a name.
// It lowercases, replaces spaces/underscores with hyphens, removes
// non-alphanumeric characters, and trims to maxSlugLength.
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	// Clean up multiple/leading/trailing hyphens
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	// Truncate to max length
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		slug = strings.TrimRight(slug, "-")
	}

	return slug
}

// GenerateID creates a new UUID for a program or execution.
func GenerateID() string {
	return uuid.New().String()
}
