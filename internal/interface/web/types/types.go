package types

import (
	"encoding/json"
	"time"
)

type Info struct {
	Version         string    `json:"version"`
	Commit          string    `json:"commit"`
	Date            string    `json:"date"`
	ProtocolVersion string    `json:"protocol_version"`
	Identity        string    `json:"identity"`
	Network         string    `json:"network"`
	PendingTasks    int       `json:"pending_tasks"`
	LockedTxs       int       `json:"locked_txs"`
	SignedTxs       int       `json:"signed_txs"`
	StartedAt       time.Time `json:"started_at"`
}

type Ping struct {
	Response string `json:"response"`
	Version  string `json:"version"`
}

type Task struct {
	Id        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Operation string    `json:"operation"`
	Filter    string    `json:"filter"`
	NextCheck time.Time `json:"next_check"`
	Done      bool      `json:"done"`
}

type Tasks struct {
	Tasks []Task `json:"tasks"`
}

type LockedTransaction struct {
	Pwtxid    string          `json:"pwtxid"`
	Request   json.RawMessage `json:"request"`
	Done      bool            `json:"done"`
	CreatedAt time.Time       `json:"created_at"`
}

type Error struct {
	Error string `json:"error"`
}
