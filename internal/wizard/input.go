package wizard

// InputKind classifies one inbound event.
type InputKind int

const (
	KindText InputKind = iota
	KindCommand
	KindContact
	KindPhoto
	KindVoice
	KindDocument
	KindOther
)

var kindNames = map[InputKind]string{
	KindText: "text", KindCommand: "command", KindContact: "contact",
	KindPhoto: "photo", KindVoice: "voice", KindDocument: "document", KindOther: "other",
}

func (k InputKind) String() string { return kindNames[k] }

// Attachment references a file still held by the transport.
type Attachment struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64
}

// Profile is what the transport knows about the sender.
type Profile struct {
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// Input is one classified event from a user.
type Input struct {
	UserID int64
	ChatID int64
	Kind   InputKind
	// Text holds the message text, or the command name without the slash.
	Text       string
	Phone      string
	Attachment *Attachment
	Profile    Profile
}

// Button is one keyboard key. RequestContact asks the client to share the
// user's phone number.
type Button struct {
	Text           string
	RequestContact bool
}

type Keyboard struct {
	Rows [][]Button
}

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
)

// Media is a stored file to send back, e.g. on the confirmation screen.
type Media struct {
	Kind    MediaKind
	Path    string
	Caption string
}

// Message is one outbound message. A nil Keyboard leaves the current one in
// place.
type Message struct {
	Text     string
	Keyboard *Keyboard
	Media    *Media
}

// Reply is everything to send back for one input.
type Reply struct {
	ChatID   int64
	Messages []Message
}

func (r *Reply) add(m ...Message) { r.Messages = append(r.Messages, m...) }
