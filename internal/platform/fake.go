package platform

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory API used by tests. Channels, prompts, roles, and bans
// are recorded so assertions can inspect the side effects of a flow.
type Fake struct {
	mu sync.Mutex

	nextID       int
	Channels     map[string]bool            // channelID -> exists
	Prompts      map[string]Prompt          // channelID|messageID -> last content
	SendPerms    map[string]bool            // channelID|memberID -> allowed
	Members      map[string]Member          // memberID -> member
	Roles        map[string]map[string]bool // memberID -> roleID set
	Banned       map[string]string          // memberID -> reason
	Purged       map[string]int             // channelID|memberID -> purged count
	DeletedMsgs  []string                   // channelID|messageID
	MutedRoleID  string
	FailCreate   bool
	FailBan      bool
	FailSend     bool
	OnDeleteChan func(channelID string)
}

func NewFake() *Fake {
	return &Fake{
		Channels:    make(map[string]bool),
		Prompts:     make(map[string]Prompt),
		SendPerms:   make(map[string]bool),
		Members:     make(map[string]Member),
		Roles:       make(map[string]map[string]bool),
		Banned:      make(map[string]string),
		Purged:      make(map[string]int),
		MutedRoleID: "muted-role",
	}
}

func (f *Fake) CreatePairChannel(_ context.Context, name string, memberIDs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return "", fmt.Errorf("channel create denied")
	}
	f.nextID++
	id := fmt.Sprintf("chan-%d", f.nextID)
	f.Channels[id] = true
	for _, member := range memberIDs {
		f.SendPerms[id+"|"+member] = false
	}
	return id, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	delete(f.Channels, channelID)
	hook := f.OnDeleteChan
	f.mu.Unlock()
	if hook != nil {
		hook(channelID)
	}
	return nil
}

func (f *Fake) SetSendPermission(_ context.Context, channelID, memberID string, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SendPerms[channelID+"|"+memberID] = allow
	return nil
}

func (f *Fake) SendPrompt(_ context.Context, channelID string, prompt Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return "", fmt.Errorf("send denied")
	}
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.Prompts[channelID+"|"+id] = prompt
	return id, nil
}

func (f *Fake) EditPrompt(_ context.Context, channelID, messageID string, prompt Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts[channelID+"|"+messageID] = prompt
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedMsgs = append(f.DeletedMsgs, channelID+"|"+messageID)
	return nil
}

func (f *Fake) SendTemporary(_ context.Context, _, _ string, _ time.Duration) error {
	return nil
}

func (f *Fake) PurgeRecent(_ context.Context, channelID, memberID string, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Purged[channelID+"|"+memberID]++
	return f.Purged[channelID+"|"+memberID], nil
}

func (f *Fake) Member(_ context.Context, memberID string) (Member, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.Members[memberID]
	return member, ok
}

func (f *Fake) EnsureMutedRole(_ context.Context) (string, error) {
	return f.MutedRoleID, nil
}

func (f *Fake) AddRole(_ context.Context, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Roles[memberID] == nil {
		f.Roles[memberID] = make(map[string]bool)
	}
	f.Roles[memberID][roleID] = true
	return nil
}

func (f *Fake) RemoveRole(_ context.Context, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Roles[memberID], roleID)
	return nil
}

func (f *Fake) Ban(_ context.Context, memberID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBan {
		return fmt.Errorf("ban denied")
	}
	f.Banned[memberID] = reason
	return nil
}

func (f *Fake) HasRole(memberID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Roles[memberID][roleID]
}

func (f *Fake) ChannelExists(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Channels[channelID]
}

func (f *Fake) CanSend(channelID, memberID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SendPerms[channelID+"|"+memberID]
}
