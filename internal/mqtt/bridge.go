package mqtt

import (
	"context"
	"encoding/json"
)

// Topic suffixes used by the collaborator bridge.
const (
	TopicStoryStart  = "story/start"
	TopicQuestTalked = "quest/talked"
	TopicPanel       = "ui/panel"
)

// Bridge forwards navigator collaborator calls to the presentation layer
// over MQTT. It satisfies navigator.StoryPlayer, navigator.QuestNotifier
// and navigator.PanelOpener.
type Bridge struct {
	pub Publisher
	cfg Config
}

func NewBridge(pub Publisher, cfg Config) *Bridge {
	return &Bridge{pub: pub, cfg: cfg}
}

type storyMessage struct {
	StoryID string `json:"story_id"`
}

type talkedMessage struct {
	ID string `json:"id"`
}

type panelMessage struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

func (b *Bridge) Start(ctx context.Context, storyID string) error {
	return b.send(TopicStoryStart, storyMessage{StoryID: storyID})
}

func (b *Bridge) OnTalkedTo(ctx context.Context, id string) error {
	return b.send(TopicQuestTalked, talkedMessage{ID: id})
}

func (b *Bridge) OpenPanel(ctx context.Context, kind string, payload interface{}) error {
	return b.send(TopicPanel, panelMessage{Kind: kind, Payload: payload})
}

func (b *Bridge) send(suffix string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.pub.Publish(b.cfg.Topic(suffix), payload)
}
