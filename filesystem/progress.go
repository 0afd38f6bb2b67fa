package filesystem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/filenode/config"
	"github.com/google/uuid"
)

// Question identifies the conflict a running command asks about
type Question int

const (
	// AskOverwrite is asked when a copy destination already exists
	AskOverwrite Question = iota + 1
	// AskCreateError is asked when a destination directory cannot be created
	AskCreateError
	// AskCopyError is asked when copying a file fails
	AskCopyError
)

func (q Question) String() string {
	switch q {
	case AskOverwrite:
		return "overwrite"
	case AskCreateError:
		return "create-error"
	case AskCopyError:
		return "copy-error"
	default:
		return fmt.Sprintf("question(%d)", int(q))
	}
}

// Answer replies to a [Prompt]
type Answer int

const (
	AnswerContinue Answer = iota + 1
	AnswerOverwrite
	AnswerSkip
	AnswerAbortFile
	AnswerAbortDir
	AnswerAbortAll
)

var answerNames = map[Answer]string{
	AnswerContinue:  "continue",
	AnswerOverwrite: "overwrite",
	AnswerSkip:      "skip",
	AnswerAbortFile: "abort-file",
	AnswerAbortDir:  "abort-dir",
	AnswerAbortAll:  "abort-all",
}

func (a Answer) String() string {
	if s, ok := answerNames[a]; ok {
		return s
	}
	return fmt.Sprintf("answer(%d)", int(a))
}

// ParseAnswer parses the names returned by [Answer.String]. Single letter
// shorthands c, o, s, f, d and a are accepted too.
func ParseAnswer(s string) (Answer, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "c":
		return AnswerContinue, nil
	case "o":
		return AnswerOverwrite, nil
	case "s":
		return AnswerSkip, nil
	case "f":
		return AnswerAbortFile, nil
	case "d":
		return AnswerAbortDir, nil
	case "a":
		return AnswerAbortAll, nil
	}
	for a, name := range answerNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown answer %q", s)
}

// Prompt is a pending question of a running command. The worker blocks until
// [Prompt.Answer] is called, the ask timeout elapses or the command context ends.
type Prompt struct {
	Question Question
	// Path is the source node path the question is about
	Path string
	// Target is the destination path, if any
	Target string
	// Err is the failure behind create and copy errors
	Err error

	reply chan Answer
}

func newPrompt(q Question, path, target string, err error) *Prompt {
	return &Prompt{
		Question: q,
		Path:     path,
		Target:   target,
		Err:      err,
		reply:    make(chan Answer, 1),
	}
}

// Answer replies to the prompt without blocking. Only the first answer is
// taken; it reports false for later ones. Answering from within
// [ProgressSink.Notify] is allowed.
func (p *Prompt) Answer(a Answer) bool {
	select {
	case p.reply <- a:
		return true
	default:
		return false
	}
}

func (p *Prompt) String() string {
	if p.Target != "" {
		return fmt.Sprintf("%s: %s -> %s", p.Question, p.Path, p.Target)
	}
	return fmt.Sprintf("%s: %s", p.Question, p.Path)
}

// EventKind tells what an [Event] reports
type EventKind int

const (
	EventUpdate EventKind = iota + 1
	EventAsk
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "update"
	case EventAsk:
		return "ask"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered to a [ProgressSink]
type Event struct {
	CommandID uuid.UUID
	Kind      EventKind
	Snapshot  Snapshot
	// Prompt is set for EventAsk
	Prompt *Prompt
}

// ProgressSink receives command events. Notify is called from the goroutine
// running the command and must not block for long.
type ProgressSink interface {
	Notify(ev Event)
}

// ProgressSinkFunc adapts a function to a [ProgressSink]
type ProgressSinkFunc func(ev Event)

func (f ProgressSinkFunc) Notify(ev Event) {
	f(ev)
}

// Snapshot is a point in time copy of a [Progress]
type Snapshot struct {
	Kind       CommandKind
	Visited    int64
	Selected   int64
	Files      int64
	Bytes      int64
	Mismatches int64
	Current    string
	Err        error
	Aborted    bool
	Done       bool
}

// Progress is the shared carrier between a running command and its
// initiator. Counters are updated by the command and may be read at any time.
type Progress struct {
	id       uuid.UUID
	kind     CommandKind
	sink     ProgressSink
	interval time.Duration

	askTimeout    time.Duration
	defaultAnswer Answer

	visited    atomic.Int64
	selected   atomic.Int64
	files      atomic.Int64
	bytes      atomic.Int64
	mismatches atomic.Int64
	aborted    atomic.Bool

	mu         sync.Mutex
	current    string
	err        error
	lastUpdate time.Time

	doneOnce sync.Once
	done     chan struct{}
}

func newProgress(cmd *Command, cfg *config.Config, sink ProgressSink) *Progress {
	interval := cmd.ProgressInterval
	if interval <= 0 {
		interval = cfg.ProgressInterval
	}
	def, err := ParseAnswer(cfg.DefaultAnswer)
	if err != nil {
		def = AnswerSkip
	}
	return &Progress{
		id:            cmd.ID,
		kind:          cmd.Kind,
		sink:          sink,
		interval:      interval,
		askTimeout:    cfg.AskTimeout,
		defaultAnswer: def,
		done:          make(chan struct{}),
	}
}

// ID returns the command ID
func (p *Progress) ID() uuid.UUID {
	return p.id
}

// Abort requests the command to stop at the next node visit. Work already
// done is not rolled back.
func (p *Progress) Abort() {
	p.aborted.Store(true)
}

// Aborted reports whether an abort was requested
func (p *Progress) Aborted() bool {
	return p.aborted.Load()
}

// Done is closed when the command finished
func (p *Progress) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the command finished or ctx ends and returns the command error
func (p *Progress) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the command error, if any
func (p *Progress) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Snapshot returns the current counters
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	cur, err := p.current, p.err
	p.mu.Unlock()
	done := false
	select {
	case <-p.done:
		done = true
	default:
	}
	return Snapshot{
		Kind:       p.kind,
		Visited:    p.visited.Load(),
		Selected:   p.selected.Load(),
		Files:      p.files.Load(),
		Bytes:      p.bytes.Load(),
		Mismatches: p.mismatches.Load(),
		Current:    cur,
		Err:        err,
		Aborted:    p.aborted.Load(),
		Done:       done,
	}
}

// visit counts an offered node and makes it the current item
func (p *Progress) visit(n *Node) {
	p.visited.Add(1)
	p.mu.Lock()
	p.current = n.Path()
	p.mu.Unlock()
	p.update(false)
}

func (p *Progress) selectFile(size int64) {
	p.selected.Add(1)
	p.files.Add(1)
	p.bytes.Add(size)
}

func (p *Progress) addBytes(n int64) {
	p.bytes.Add(n)
}

func (p *Progress) addMismatch() {
	p.mismatches.Add(1)
}

// fail records the first error without finishing the command
func (p *Progress) fail(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

// update emits an update event, throttled by the interval unless forced
func (p *Progress) update(force bool) {
	if p.sink == nil {
		return
	}
	now := time.Now()
	p.mu.Lock()
	if !force && now.Sub(p.lastUpdate) < p.interval {
		p.mu.Unlock()
		return
	}
	p.lastUpdate = now
	p.mu.Unlock()
	p.sink.Notify(Event{CommandID: p.id, Kind: EventUpdate, Snapshot: p.Snapshot()})
}

// finish records err, closes Done and emits the done event once
func (p *Progress) finish(err error) {
	p.doneOnce.Do(func() {
		p.fail(err)
		close(p.done)
		if p.sink != nil {
			p.sink.Notify(Event{CommandID: p.id, Kind: EventDone, Snapshot: p.Snapshot()})
		}
	})
}

// interactive reports whether prompts reach a sink
func (p *Progress) interactive() bool {
	return p.sink != nil
}

// ask blocks until the prompt is answered. Without a sink the configured
// default answer is used, a timeout answers AbortFile and an ended context
// answers AbortAll.
func (p *Progress) ask(ctx context.Context, q Question, path, target string, cause error) Answer {
	if p.sink == nil {
		if p.defaultAnswer == AnswerAbortAll {
			p.Abort()
		}
		return p.defaultAnswer
	}
	pr := newPrompt(q, path, target, cause)
	p.sink.Notify(Event{CommandID: p.id, Kind: EventAsk, Snapshot: p.Snapshot(), Prompt: pr})

	timer := time.NewTimer(p.askTimeout)
	defer timer.Stop()
	select {
	case a := <-pr.reply:
		if a == AnswerAbortAll {
			p.Abort()
		}
		return a
	case <-timer.C:
		return AnswerAbortFile
	case <-ctx.Done():
		p.Abort()
		return AnswerAbortAll
	}
}
