package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// TestEnvironment is a target execution environment a marker's runs
// may run against. The id is a pure function of the physical identity
// so importing the same environment twice upserts the same record.
type TestEnvironment struct {
	ID          string
	Name        string
	Region      string
	AccountID   string
	StackName   string
	TopicHandle string
	AlarmEmail  string
	ProjectID   string
	CreatedAt   string
}

func (e TestEnvironment) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("environment id is required")
	}
	if strings.TrimSpace(e.AccountID) == "" {
		return errors.New("account id is required")
	}
	if strings.TrimSpace(e.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(e.StackName) == "" {
		return errors.New("stack name is required")
	}
	return nil
}

// EnvironmentID derives the stable environment id from the physical
// identity triple. Whitespace differences must not change the id.
func EnvironmentID(accountID, region, stackName string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(accountID),
		strings.TrimSpace(region),
		strings.TrimSpace(stackName),
	}, "/")))
	return hex.EncodeToString(sum[:])[:16]
}
