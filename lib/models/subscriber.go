package models

import "strings"

const DefaultPlatform = "telegram"

// Subscriber is a notification recipient decoded from an opaque subscriber id
// of the form "platform:identifier". Bare ids belong to DefaultPlatform.
type Subscriber struct {
	Platform   string
	Identifier string
}

func ParseSubscriber(id string) Subscriber {
	platform, ident, ok := strings.Cut(id, ":")
	if !ok || platform == "" {
		return Subscriber{Platform: DefaultPlatform, Identifier: id}
	}
	return Subscriber{Platform: strings.ToLower(platform), Identifier: ident}
}

func (s Subscriber) String() string {
	return s.Platform + ":" + s.Identifier
}

// ID is the canonical subscriber id: bare for DefaultPlatform, prefixed otherwise.
func (s Subscriber) ID() string {
	if s.Platform == DefaultPlatform {
		return s.Identifier
	}
	return s.String()
}

// SameSubscriber reports whether a and b address the same recipient.
func SameSubscriber(a, b string) bool {
	return ParseSubscriber(a).ID() == ParseSubscriber(b).ID()
}
