package jetstream

import (
	"context"
	"time"
)

// RetentionPolicy selects how a stream discards old messages.
type RetentionPolicy string

const (
	RetentionLimits    RetentionPolicy = "limits"
	RetentionInterest  RetentionPolicy = "interest"
	RetentionWorkQueue RetentionPolicy = "workqueue"
)

// StorageType selects the stream's backing store.
type StorageType string

const (
	StorageFile   StorageType = "file"
	StorageMemory StorageType = "memory"
)

// DiscardPolicy selects which end of a full stream is trimmed.
type DiscardPolicy string

const (
	DiscardOld DiscardPolicy = "old"
	DiscardNew DiscardPolicy = "new"
)

// StreamConfig is the subset of stream configuration fields the admin API
// accepts.
type StreamConfig struct {
	Name         string          `json:"name"`
	Subjects     []string        `json:"subjects,omitempty"`
	Retention    RetentionPolicy `json:"retention,omitempty"`
	MaxConsumers int             `json:"max_consumers,omitempty"`
	MaxMsgs      int64           `json:"max_msgs,omitempty"`
	MaxBytes     int64           `json:"max_bytes,omitempty"`
	MaxAge       time.Duration   `json:"max_age,omitempty"`
	MaxMsgSize   int32           `json:"max_msg_size,omitempty"`
	Storage      StorageType     `json:"storage,omitempty"`
	Replicas     int             `json:"num_replicas,omitempty"`
	Discard      DiscardPolicy   `json:"discard,omitempty"`
	Duplicates   time.Duration   `json:"duplicate_window,omitempty"`
}

// StreamState reports a stream's current occupancy.
type StreamState struct {
	Msgs          uint64 `json:"messages"`
	Bytes         uint64 `json:"bytes"`
	FirstSeq      uint64 `json:"first_seq"`
	LastSeq       uint64 `json:"last_seq"`
	ConsumerCount int    `json:"consumer_count"`
}

// StreamInfo is the admin API's response describing a stream.
type StreamInfo struct {
	Config  StreamConfig `json:"config"`
	Created time.Time    `json:"created"`
	State   StreamState  `json:"state"`
}

// PurgeRequest narrows a STREAM.PURGE call to a subject, a starting
// sequence, or a trailing count of messages to keep.
type PurgeRequest struct {
	Subject  string `json:"filter,omitempty"`
	Sequence uint64 `json:"seq,omitempty"`
	Keep     uint64 `json:"keep,omitempty"`
}

type purgeResponse struct {
	Purged uint64 `json:"purged"`
}

// CreateStream creates a new stream and returns its info.
func (j *JetStream) CreateStream(ctx context.Context, cfg StreamConfig) (*StreamInfo, error) {
	var info StreamInfo
	if err := j.apiRequest(ctx, "STREAM.CREATE."+cfg.Name, cfg, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// UpdateStream applies cfg to an existing stream.
func (j *JetStream) UpdateStream(ctx context.Context, cfg StreamConfig) (*StreamInfo, error) {
	var info StreamInfo
	if err := j.apiRequest(ctx, "STREAM.UPDATE."+cfg.Name, cfg, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// DeleteStream removes a stream and all of its messages.
func (j *JetStream) DeleteStream(ctx context.Context, name string) error {
	return j.apiRequest(ctx, "STREAM.DELETE."+name, nil, nil)
}

// StreamInfo fetches the current info for a stream.
func (j *JetStream) StreamInfo(ctx context.Context, name string) (*StreamInfo, error) {
	var info StreamInfo
	if err := j.apiRequest(ctx, "STREAM.INFO."+name, nil, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

type streamListResponse struct {
	Streams []StreamInfo `json:"streams"`
}

// ListStreams returns every stream visible to the connection's account.
func (j *JetStream) ListStreams(ctx context.Context) ([]StreamInfo, error) {
	var resp streamListResponse
	if err := j.apiRequest(ctx, "STREAM.LIST", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Streams, nil
}

// PurgeStream deletes messages from a stream according to req, returning
// the number of messages purged.
func (j *JetStream) PurgeStream(ctx context.Context, name string, req *PurgeRequest) (uint64, error) {
	var resp purgeResponse
	if err := j.apiRequest(ctx, "STREAM.PURGE."+name, req, &resp); err != nil {
		return 0, err
	}

	return resp.Purged, nil
}

// StoredMsg is a single message fetched directly from a stream by sequence
// or last-per-subject, bypassing consumer delivery.
type StoredMsg struct {
	Subject  string            `json:"subject"`
	Sequence uint64            `json:"seq"`
	Header   map[string]string `json:"hdrs,omitempty"`
	Data     []byte            `json:"data,omitempty"`
	Time     time.Time         `json:"time"`
}

type getMsgRequest struct {
	Sequence   uint64 `json:"seq,omitempty"`
	LastBySubj string `json:"last_by_subj,omitempty"`
}

type getMsgResponse struct {
	Message StoredMsg `json:"message"`
}

// GetMsg fetches the message at seq directly from the stream (STREAM.MSG.GET).
func (j *JetStream) GetMsg(ctx context.Context, stream string, seq uint64) (*StoredMsg, error) {
	var resp getMsgResponse
	if err := j.apiRequest(ctx, "STREAM.MSG.GET."+stream, getMsgRequest{Sequence: seq}, &resp); err != nil {
		return nil, err
	}

	return &resp.Message, nil
}

// GetLastMsgForSubject fetches the newest message on a literal subject
// within the stream, without needing its sequence number.
func (j *JetStream) GetLastMsgForSubject(ctx context.Context, stream, subject string) (*StoredMsg, error) {
	var resp getMsgResponse
	if err := j.apiRequest(ctx, "STREAM.MSG.GET."+stream, getMsgRequest{LastBySubj: subject}, &resp); err != nil {
		return nil, err
	}

	return &resp.Message, nil
}

type deleteMsgRequest struct {
	Sequence uint64 `json:"seq"`
	NoErase  bool   `json:"no_erase,omitempty"`
}

// DeleteMsg removes the message at seq from the stream (STREAM.MSG.DELETE).
// When erase is true, the broker also overwrites the message's contents on
// disk rather than merely marking it deleted.
func (j *JetStream) DeleteMsg(ctx context.Context, stream string, seq uint64, erase bool) error {
	return j.apiRequest(ctx, "STREAM.MSG.DELETE."+stream, deleteMsgRequest{Sequence: seq, NoErase: !erase}, nil)
}

// StepDownStreamLeader asks the current stream leader to step down,
// triggering a new leader election. Client-side pass-through only; no
// clustering logic beyond this thin request wrapper.
func (j *JetStream) StepDownStreamLeader(ctx context.Context, stream string) error {
	return j.apiRequest(ctx, "STREAM.LEADER.STEPDOWN."+stream, nil, nil)
}

type removePeerRequest struct {
	Peer string `json:"peer"`
}

// RemoveStreamPeer evicts a raft peer from a stream's replica set.
func (j *JetStream) RemoveStreamPeer(ctx context.Context, stream, peer string) error {
	return j.apiRequest(ctx, "STREAM.PEER.REMOVE."+stream, removePeerRequest{Peer: peer}, nil)
}

// Stream is a thin facade bound to one named stream, for callers that would
// rather not repeat the name on every call.
type Stream struct {
	js   *JetStream
	name string
}

// Stream returns a facade for the named stream. It does not verify the
// stream exists; use Info to do so.
func (j *JetStream) Stream(name string) *Stream { return &Stream{js: j, name: name} }

// Name returns the stream's name.
func (s *Stream) Name() string { return s.name }

// Info fetches the stream's current info.
func (s *Stream) Info(ctx context.Context) (*StreamInfo, error) { return s.js.StreamInfo(ctx, s.name) }

// Purge deletes messages from the stream according to req.
func (s *Stream) Purge(ctx context.Context, req *PurgeRequest) (uint64, error) {
	return s.js.PurgeStream(ctx, s.name, req)
}

// Delete removes the stream.
func (s *Stream) Delete(ctx context.Context) error { return s.js.DeleteStream(ctx, s.name) }

// CreateConsumer creates a consumer on this stream.
func (s *Stream) CreateConsumer(ctx context.Context, cfg ConsumerConfig) (*Consumer, error) {
	return s.js.CreateConsumer(ctx, s.name, cfg)
}
