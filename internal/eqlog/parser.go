package eqlog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Line envelope: [Tue Aug 25 21:03:11 2026] message
var linePattern = regexp.MustCompile(`^\[(\w+ \w+ \d+ \d+:\d+:\d+ \d+)\] (.*)$`)

// Chat patterns.
var (
	guildOut = regexp.MustCompile(`^You say to your guild, '(.+)'$`)
	guildIn  = regexp.MustCompile(`^(\w+) tells the guild, '(.+)'$`)

	oocOut = regexp.MustCompile(`^You say out of character, '(.+)'$`)
	oocIn  = regexp.MustCompile(`^(\w+) says out of character, '(.+)'$`)

	groupOut = regexp.MustCompile(`^You tell your party, '(.+)'$`)
	groupIn  = regexp.MustCompile(`^(\w+) tells the group, '(.+)'$`)

	shoutOut = regexp.MustCompile(`^You shout,? '(.+)'$`)
	shoutIn  = regexp.MustCompile(`^(.+?) shouts,? '(.+)'$`)

	auctionOut = regexp.MustCompile(`^You auction,? '(.+)'$`)
	auctionIn  = regexp.MustCompile(`^(.+?) auctions,? '(.+)'$`)

	tellIn    = regexp.MustCompile(`^(\w+) tells you, '(.+)'$`)
	tellOut   = regexp.MustCompile(`^You told (\w+),? '(?:\[queued\], )?(.+)'$`)
	tellArrow = regexp.MustCompile(`^(\w+) -> (\w+): (.+)$`)

	sayOut = regexp.MustCompile(`^You say, '(.+)'$`)
	sayIn  = regexp.MustCompile(`^(\w+) says, '(.+)'$`)
)

// Random rolls arrive as two consecutive lines.
var (
	randomRoller = regexp.MustCompile(`^\*\*A Magic Die is rolled by (\w+)\.$`)
	randomResult = regexp.MustCompile(`^\*\*It could have been any number from (\d+) to (\d+), but this time it turned up a (\d+)\.$`)
)

// /who output.
const (
	whoHeader        = "Players on EverQuest:"
	whoNoMatchPrefix = "There are no players in EverQuest that match"
	whoEndPrefix     = "There "
)

// Spell lines.
var (
	castingPattern  = regexp.MustCompile(`^You begin casting (.+)\.$`)
	itemGlowPattern = regexp.MustCompile(`^Your (.+) begins to glow\.$`)
	wornOffPattern  = regexp.MustCompile(`^Your (.+) spell has worn off\.$`)
)

// Combat lines.
var (
	yourDamagePattern = regexp.MustCompile(
		`^You (?:hit|slash|pierce|crush|bash|kick|punch|strike|slice|claw|bite|sting|maul|gore|smash|backstab) ` +
			`(.+) for (\d+) points? of damage\.$`)
	nonMeleePattern = regexp.MustCompile(
		`^(.+) was hit by non-melee for (\d+) points? of damage\.$`)
	otherDamagePattern = regexp.MustCompile(
		`^(.+?) (?:hits|slashes|pierces|crushes|bashes|kicks|punches|strikes|slices|claws|bites|stings|mauls|gores|smashes|backstabs) ` +
			`(.+) for (\d+) points? of damage\.$`)
	youSlainPattern   = regexp.MustCompile(`^You have slain (.+)!$`)
	otherSlainPattern = regexp.MustCompile(`^(.+) has been slain by`)
)

// Game state markers.
const (
	msgLoading     = "LOADING, PLEASE WAIT"
	msgEntered     = "You have entered"
	msgCampStart   = "It will take you about 30 seconds to prepare your camp."
	msgCampAbandon = "You abandon your preparations to camp."
	msgWelcome     = "Welcome to EverQuest!"
	msgSlain       = "You have been slain"
)

// Buff fading warnings the client prints shortly before certain effects drop.
const (
	msgLeviFading     = "You feel as if you are about to fall."
	msgInvisFading    = "You feel yourself starting to appear."
	msgIllusionFading = "You feel as if you are about to look like yourself again."
)

// petMessages is pet chatter delivered through say/tell that should never
// reach the chat panel.
var petMessages = []string{
	"following you, master.",
	"guarding with my life..oh splendid one.",
	"no longer taunting attackers, master.",
	"as you wish, oh great one.",
	"sorry to have failed you, oh great one.",
	"ahhh, i feel much better now...",
}

var blacklistedMessages = []string{
	"You feel quite amicable.",
}

var castFailureMessages = []string{
	"Your spell fizzles",
	"Your target resisted",
	"Your must first select a target",
	"Your spell is interrupted",
	"You cannot see your target",
	"Your target is out of range",
}

// Parser classifies log lines for one character. It is stateless per call
// except for the die-roll adjacency flag and the /who accumulation buffer,
// so it must be fed lines from a single ordered stream.
type Parser struct {
	characterName string

	pendingRoller  string
	lastWasDieRoll bool // result line must be the very next line

	whoLines     []string
	whoTimestamp time.Time
}

// NewParser creates a Parser for the named character.
func NewParser(characterName string) *Parser {
	return &Parser{characterName: characterName}
}

// ParseLine parses the timestamp envelope of a raw log line. Lines that do
// not match the envelope, or whose date fails to parse, yield no entry.
func (p *Parser) ParseLine(raw string) (Entry, bool) {
	m := linePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Entry{}, false
	}
	// Log timestamps are the machine's local time; they get compared
	// against the wall clock during history replay.
	ts, err := time.ParseInLocation(TimestampLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Timestamp: ts, Message: strings.TrimSpace(m[2])}, true
}

// decodeText expands the log file's escaped entities.
func decodeText(s string) string {
	s = strings.ReplaceAll(s, "&PCT;", "%")
	return strings.ReplaceAll(s, "&AMP;", "&")
}

func (p *Parser) isPetSpam(content string) bool {
	lower := strings.ToLower(content)
	for _, msg := range petMessages {
		if lower == msg {
			return true
		}
	}
	return strings.HasPrefix(lower, "attacking ") && strings.HasSuffix(lower, " master.")
}

// ParseChatMessage classifies a chat line. Returns nil for non-chat lines
// and for suppressed content (pet spam, the opening half of a die roll).
func (p *Parser) ParseChatMessage(entry Entry) *ChatMessage {
	text := entry.Message

	// Die-roll adjacency is one-shot: whatever this line turns out to be,
	// the previous line's opener no longer counts afterwards.
	prevWasRoll := p.lastWasDieRoll
	p.lastWasDieRoll = false

	if m := guildOut.FindStringSubmatch(text); m != nil {
		return p.outgoing(entry, ChannelGuild, m[1])
	}
	if m := guildIn.FindStringSubmatch(text); m != nil {
		return p.incoming(entry, ChannelGuild, m[1], m[2])
	}

	if m := oocOut.FindStringSubmatch(text); m != nil {
		return p.outgoing(entry, ChannelOOC, m[1])
	}
	if m := oocIn.FindStringSubmatch(text); m != nil {
		return p.incoming(entry, ChannelOOC, m[1], m[2])
	}

	if m := groupOut.FindStringSubmatch(text); m != nil {
		return p.outgoing(entry, ChannelGroup, m[1])
	}
	if m := groupIn.FindStringSubmatch(text); m != nil {
		return p.incoming(entry, ChannelGroup, m[1], m[2])
	}

	if m := shoutOut.FindStringSubmatch(text); m != nil {
		return p.outgoing(entry, ChannelShout, m[1])
	}
	if m := shoutIn.FindStringSubmatch(text); m != nil {
		return p.incoming(entry, ChannelShout, m[1], m[2])
	}

	if m := auctionOut.FindStringSubmatch(text); m != nil {
		return p.outgoing(entry, ChannelAuction, m[1])
	}
	if m := auctionIn.FindStringSubmatch(text); m != nil {
		return p.incoming(entry, ChannelAuction, m[1], m[2])
	}

	if m := tellIn.FindStringSubmatch(text); m != nil {
		sender := m[1]
		content := decodeText(m[2])
		if p.isPetSpam(content) {
			return nil
		}
		return &ChatMessage{
			Timestamp:  entry.Timestamp,
			Channel:    ChannelTell,
			Sender:     sender,
			Content:    content,
			TellTarget: sender,
		}
	}
	if m := tellOut.FindStringSubmatch(text); m != nil {
		return &ChatMessage{
			Timestamp:  entry.Timestamp,
			Channel:    ChannelTell,
			Sender:     "You",
			Content:    decodeText(m[2]),
			IsOutgoing: true,
			TellTarget: m[1],
		}
	}
	if m := tellArrow.FindStringSubmatch(text); m != nil {
		sender, recipient := m[1], m[2]
		isOut := strings.EqualFold(sender, p.characterName)
		other := sender
		if isOut {
			other = recipient
		}
		content := decodeText(m[3])
		if !isOut && p.isPetSpam(content) {
			return nil
		}
		return &ChatMessage{
			Timestamp:  entry.Timestamp,
			Channel:    ChannelTell,
			Sender:     sender,
			Content:    content,
			IsOutgoing: isOut,
			TellTarget: other,
		}
	}

	if m := sayOut.FindStringSubmatch(text); m != nil {
		return p.outgoing(entry, ChannelSay, m[1])
	}
	if m := sayIn.FindStringSubmatch(text); m != nil {
		content := decodeText(m[2])
		if p.isPetSpam(content) {
			return nil
		}
		return p.incoming(entry, ChannelSay, m[1], m[2])
	}

	// First half of a roll: remember the roller, emit nothing yet.
	if m := randomRoller.FindStringSubmatch(text); m != nil {
		p.pendingRoller = m[1]
		p.lastWasDieRoll = true
		return nil
	}

	// Second half. Only valid immediately after the opener.
	if m := randomResult.FindStringSubmatch(text); m != nil {
		if !prevWasRoll || p.pendingRoller == "" {
			return nil
		}
		roller := p.pendingRoller
		p.pendingRoller = ""
		low, high, result := m[1], m[2], m[3]
		return &ChatMessage{
			Timestamp:  entry.Timestamp,
			Channel:    ChannelRandom,
			Sender:     roller,
			Content:    result + " (" + low + "-" + high + ")",
			IsOutgoing: strings.EqualFold(roller, p.characterName),
		}
	}

	return nil
}

func (p *Parser) outgoing(entry Entry, ch Channel, content string) *ChatMessage {
	return &ChatMessage{
		Timestamp:  entry.Timestamp,
		Channel:    ch,
		Sender:     "You",
		Content:    decodeText(content),
		IsOutgoing: true,
	}
}

func (p *Parser) incoming(entry Entry, ch Channel, sender, content string) *ChatMessage {
	return &ChatMessage{
		Timestamp: entry.Timestamp,
		Channel:   ch,
		Sender:    sender,
		Content:   decodeText(content),
	}
}

// ParseWho accumulates /who output. The header line opens a block, following
// lines accumulate, and the "There ..." summary closes it and yields one
// aggregated message stamped with the header's timestamp. A standalone
// no-match line yields its own message.
func (p *Parser) ParseWho(entry Entry) *ChatMessage {
	text := entry.Message

	if text == whoHeader {
		p.whoLines = []string{text}
		p.whoTimestamp = entry.Timestamp
		return nil
	}

	if len(p.whoLines) == 0 && strings.HasPrefix(text, whoNoMatchPrefix) {
		return &ChatMessage{
			Timestamp: entry.Timestamp,
			Channel:   ChannelWho,
			Sender:    "Who",
			Content:   text,
		}
	}

	if len(p.whoLines) > 0 {
		p.whoLines = append(p.whoLines, text)
		if strings.HasPrefix(text, whoEndPrefix) {
			combined := strings.Join(p.whoLines, "\n")
			ts := p.whoTimestamp
			p.whoLines = nil
			return &ChatMessage{
				Timestamp: ts,
				Channel:   ChannelWho,
				Sender:    "Who",
				Content:   combined,
			}
		}
	}

	return nil
}

// ParseCasting returns the spell name from a "You begin casting" line.
func (p *Parser) ParseCasting(entry Entry) (string, bool) {
	return firstGroup(castingPattern, entry.Message)
}

// ParseItemGlow returns the item name from a "begins to glow" line.
func (p *Parser) ParseItemGlow(entry Entry) (string, bool) {
	return firstGroup(itemGlowPattern, entry.Message)
}

// ParseWornOff returns the spell name from a "spell has worn off" line.
func (p *Parser) ParseWornOff(entry Entry) (string, bool) {
	return firstGroup(wornOffPattern, entry.Message)
}

// ParseYourDamage parses the character's own melee damage.
func (p *Parser) ParseYourDamage(entry Entry) (target string, amount int, ok bool) {
	m := yourDamagePattern.FindStringSubmatch(entry.Message)
	if m == nil {
		return "", 0, false
	}
	return m[1], atoi(m[2]), true
}

// ParseNonMeleeDamage parses spell and proc damage lines.
func (p *Parser) ParseNonMeleeDamage(entry Entry) (target string, amount int, ok bool) {
	m := nonMeleePattern.FindStringSubmatch(entry.Message)
	if m == nil {
		return "", 0, false
	}
	return m[1], atoi(m[2]), true
}

// ParseOtherDamage parses melee damage dealt by other players or pets.
func (p *Parser) ParseOtherDamage(entry Entry) (attacker, target string, amount int, ok bool) {
	m := otherDamagePattern.FindStringSubmatch(entry.Message)
	if m == nil {
		return "", "", 0, false
	}
	return m[1], m[2], atoi(m[3]), true
}

// ParseYouSlain returns the victim of a "You have slain X!" line.
func (p *Parser) ParseYouSlain(entry Entry) (string, bool) {
	return firstGroup(youSlainPattern, entry.Message)
}

// IsOtherSlain reports whether something was slain by someone else.
func (p *Parser) IsOtherSlain(entry Entry) bool {
	return otherSlainPattern.MatchString(entry.Message)
}

// IsCastFailure reports whether the line is one of the cast failure phrases.
func (p *Parser) IsCastFailure(entry Entry) bool {
	for _, msg := range castFailureMessages {
		if strings.Contains(entry.Message, msg) {
			return true
		}
	}
	return false
}

// IsBlacklisted reports whether the line should be dropped outright.
func (p *Parser) IsBlacklisted(entry Entry) bool {
	for _, msg := range blacklistedMessages {
		if entry.Message == msg {
			return true
		}
	}
	return false
}

// IsDeath reports whether the character died.
func (p *Parser) IsDeath(entry Entry) bool {
	return strings.Contains(entry.Message, msgSlain)
}

// IsZoneChange reports whether the character entered a new zone.
func (p *Parser) IsZoneChange(entry Entry) bool {
	return strings.HasPrefix(entry.Message, msgEntered)
}

// IsLoading reports whether the line is a loading-screen marker.
func (p *Parser) IsLoading(entry Entry) bool {
	return strings.Contains(entry.Message, msgLoading)
}

// IsCampStart reports whether camping began.
func (p *Parser) IsCampStart(entry Entry) bool {
	return entry.Message == msgCampStart
}

// IsCampAbandon reports whether camping was abandoned.
func (p *Parser) IsCampAbandon(entry Entry) bool {
	return entry.Message == msgCampAbandon
}

// IsWelcome reports the login welcome message.
func (p *Parser) IsWelcome(entry Entry) bool {
	return strings.HasPrefix(entry.Message, msgWelcome)
}

// BuffWarning returns the kind of buff about to fade ("levitation",
// "invisibility", "illusion"), if the line is one of the warning phrases.
func (p *Parser) BuffWarning(entry Entry) (string, bool) {
	switch entry.Message {
	case msgLeviFading:
		return "levitation", true
	case msgInvisFading:
		return "invisibility", true
	case msgIllusionFading:
		return "illusion", true
	}
	return "", false
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// atoi converts digits already matched by \d+; the error cannot occur.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
