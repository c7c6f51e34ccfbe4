// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package config loads YAML socket profiles.
//
// A profile has four optional sections:
//
//	connect: {host: 10.0.0.2, port: 5000, localPort: 5001, listen: false, MIS: 2, OS: 2}
//	send: {protocol: 51, stream: 0}
//	peer: {hb_interval: 30000}
//	assoc: {cookie_life: 60000}
//
// connect is parsed with socket.ParseConnectOptions, the others become
// socket.Params bags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pion/sctpsock/socket"
	"gopkg.in/yaml.v3"
)

// Section names a top level key of a profile.
type Section string

const (
	SectionConnect Section = "connect"
	SectionSend    Section = "send"
	SectionPeer    Section = "peer"
	SectionAssoc   Section = "assoc"
)

var allowedParams = map[Section][]string{
	SectionSend:  {socket.ParamProtocol, socket.ParamStream, socket.ParamUnordered, socket.ParamContext},
	SectionPeer:  {socket.ParamHeartbeatInterval, socket.ParamSackFreq, socket.ParamSackTimeout},
	SectionAssoc: {socket.ParamCookieLife},
}

// Profile is the raw form of a profile file.
type Profile struct {
	Connect map[string]any `yaml:"connect"`
	Send    map[string]any `yaml:"send"`
	Peer    map[string]any `yaml:"peer"`
	Assoc   map[string]any `yaml:"assoc"`
}

// Session is a resolved profile.
type Session struct {
	Connect socket.ConnectOptions
	Send    socket.Params
	Peer    socket.Params
	Assoc   socket.Params
}

// Load reads a profile from path. An empty path yields an empty profile.
func Load(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}
	data, err := readFileSafe(path)
	if err != nil {
		return nil, err
	}

	profile, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return profile, nil
}

// Parse decodes a profile document. Unknown sections are rejected.
func Parse(data []byte) (*Profile, error) {
	var profile Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil {
		if errors.Is(err, io.EOF) {
			return &Profile{}, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", errUnknownSection, err)
		}

		return nil, fmt.Errorf("config: decode profile: %w", err)
	}

	return &profile, nil
}

// Set overrides a single value, creating the section when needed.
func (p *Profile) Set(section Section, key string, value any) {
	target := p.section(section)
	if *target == nil {
		*target = map[string]any{}
	}
	(*target)[key] = value
}

func (p *Profile) section(section Section) *map[string]any {
	switch section {
	case SectionConnect:
		return &p.Connect
	case SectionSend:
		return &p.Send
	case SectionPeer:
		return &p.Peer
	case SectionAssoc:
		return &p.Assoc
	default:
		panic(fmt.Sprintf("config: section %q", section))
	}
}

// Resolve validates the parameter sections and parses the connect section.
func (p *Profile) Resolve() (Session, error) {
	connect := p.Connect
	if connect == nil {
		connect = map[string]any{}
	}
	opts, err := socket.ParseConnectOptions(connect)
	if err != nil {
		return Session{}, fmt.Errorf("config: %s: %w", SectionConnect, err)
	}

	session := Session{Connect: *opts}
	for _, sec := range []struct {
		name Section
		raw  map[string]any
		dst  *socket.Params
	}{
		{SectionSend, p.Send, &session.Send},
		{SectionPeer, p.Peer, &session.Peer},
		{SectionAssoc, p.Assoc, &session.Assoc},
	} {
		params, err := checkParams(sec.name, sec.raw)
		if err != nil {
			return Session{}, err
		}
		*sec.dst = params
	}

	return session, nil
}

func checkParams(section Section, raw map[string]any) (socket.Params, error) {
	allowed := allowedParams[section]
	var unknown []string
	for key := range raw {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)

		return nil, fmt.Errorf("%w: %s.%s", errUnknownParam, section, strings.Join(unknown, ","))
	}

	return socket.Params(raw).Clone(), nil
}

func readFileSafe(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return nil, fmt.Errorf("%w: %s", errInvalidProfilePath, path)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", errInvalidProfilePath, path)
	}

	data, err := os.ReadFile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("config: read profile: %w", err)
	}

	return data, nil
}
