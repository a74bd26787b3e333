package systems

import (
	"encoding/json"
	"log"

	"github.com/quasilyte/gdata"
)

// SavedSession is the reconnect state stored on disk between runs.
type SavedSession struct {
	PlayerName     string `json:"playerName"`
	LastServer     string `json:"lastServer"`
	ReconnectToken string `json:"reconnectToken"`
}

var gdataManager *gdata.Manager
var gdataInitialized bool

// InitPersistence opens the on-disk store for session data.
func InitPersistence() error {
	m, err := gdata.Open(gdata.Config{
		AppName: "netplay",
	})
	if err != nil {
		log.Printf("Warning: Could not initialize persistence: %v", err)
		return err
	}
	gdataManager = m
	gdataInitialized = true
	return nil
}

// LoadSession loads the previously saved session, or nil when none exists.
func LoadSession() (*SavedSession, error) {
	if !gdataInitialized || gdataManager == nil {
		return nil, nil
	}

	data, err := gdataManager.LoadItem("session")
	if err != nil {
		log.Printf("Warning: Could not load session: %v", err)
		return nil, nil
	}
	if len(data) == 0 {
		return nil, nil
	}

	var session SavedSession
	if err := json.Unmarshal(data, &session); err != nil {
		log.Printf("Warning: Could not parse saved session: %v", err)
		return nil, err
	}

	return &session, nil
}

// SaveSession persists the session so the next run can offer a reconnect.
func SaveSession(s *SavedSession) error {
	if !gdataInitialized || gdataManager == nil || s == nil {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		log.Printf("Warning: Could not serialize session: %v", err)
		return err
	}

	if err := gdataManager.SaveItem("session", data); err != nil {
		log.Printf("Warning: Could not save session: %v", err)
		return err
	}
	return nil
}

// ClearSession removes any saved session.
func ClearSession() error {
	if !gdataInitialized || gdataManager == nil {
		return nil
	}
	if err := gdataManager.SaveItem("session", nil); err != nil {
		log.Printf("Warning: Could not clear session: %v", err)
		return err
	}
	return nil
}
