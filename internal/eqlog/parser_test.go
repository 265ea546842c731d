package eqlog

import (
	"strings"
	"testing"
	"time"
)

func entry(t *testing.T, p *Parser, raw string) Entry {
	t.Helper()
	e, ok := p.ParseLine(raw)
	if !ok {
		t.Fatalf("ParseLine rejected %q", raw)
	}
	return e
}

func TestParseLine(t *testing.T) {
	p := NewParser("Borak")

	e := entry(t, p, "[Tue Aug 25 21:03:11 2026] You say, 'hello'")
	want := time.Date(2026, time.August, 25, 21, 3, 11, 0, time.Local)
	if !e.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, want)
	}
	if e.Message != "You say, 'hello'" {
		t.Errorf("message = %q", e.Message)
	}

	if _, ok := p.ParseLine("no envelope here"); ok {
		t.Error("line without envelope parsed")
	}
	if _, ok := p.ParseLine("[not a date] text"); ok {
		t.Error("bad timestamp parsed")
	}
}

func TestParseChatChannels(t *testing.T) {
	p := NewParser("Borak")

	cases := []struct {
		line     string
		channel  Channel
		sender   string
		content  string
		outgoing bool
	}{
		{"You say to your guild, 'raid at 8'", ChannelGuild, "You", "raid at 8", true},
		{"Thaldir tells the guild, 'on my way'", ChannelGuild, "Thaldir", "on my way", false},
		{"You say out of character, 'afk'", ChannelOOC, "You", "afk", true},
		{"Mira says out of character, 'lfg'", ChannelOOC, "Mira", "lfg", false},
		{"You tell your party, 'inc'", ChannelGroup, "You", "inc", true},
		{"Mira tells the group, 'med up'", ChannelGroup, "Mira", "med up", false},
		{"You shout, 'train to zone'", ChannelShout, "You", "train to zone", true},
		{"Mira shouts, 'watch out'", ChannelShout, "Mira", "watch out", false},
		{"You auction, 'WTS banded'", ChannelAuction, "You", "WTS banded", true},
		{"Tobin auctions, 'WTB sow'", ChannelAuction, "Tobin", "WTB sow", false},
		{"You say, 'hail'", ChannelSay, "You", "hail", true},
		{"Guard says, 'move along'", ChannelSay, "Guard", "move along", false},
	}

	for _, tc := range cases {
		msg := p.ParseChatMessage(Entry{Message: tc.line})
		if msg == nil {
			t.Errorf("%q: not classified", tc.line)
			continue
		}
		if msg.Channel != tc.channel || msg.Sender != tc.sender ||
			msg.Content != tc.content || msg.IsOutgoing != tc.outgoing {
			t.Errorf("%q: got %+v", tc.line, msg)
		}
	}
}

func TestParseTells(t *testing.T) {
	p := NewParser("Borak")

	msg := p.ParseChatMessage(Entry{Message: "Mira tells you, 'port please'"})
	if msg == nil || msg.Channel != ChannelTell || msg.TellTarget != "Mira" || msg.IsOutgoing {
		t.Fatalf("incoming tell: %+v", msg)
	}
	if got := msg.ConversationID(); got != "tell:mira" {
		t.Errorf("ConversationID() = %q", got)
	}

	msg = p.ParseChatMessage(Entry{Message: "You told Mira, 'omw'"})
	if msg == nil || !msg.IsOutgoing || msg.TellTarget != "Mira" || msg.Content != "omw" {
		t.Fatalf("outgoing tell: %+v", msg)
	}

	msg = p.ParseChatMessage(Entry{Message: "You told Mira, '[queued], afk message'"})
	if msg == nil || msg.Content != "afk message" {
		t.Fatalf("queued tell: %+v", msg)
	}

	// Arrow form, both directions relative to the character.
	msg = p.ParseChatMessage(Entry{Message: "Borak -> Mira: on the way"})
	if msg == nil || !msg.IsOutgoing || msg.TellTarget != "Mira" {
		t.Fatalf("arrow outgoing: %+v", msg)
	}
	msg = p.ParseChatMessage(Entry{Message: "Mira -> Borak: thanks"})
	if msg == nil || msg.IsOutgoing || msg.TellTarget != "Mira" {
		t.Fatalf("arrow incoming: %+v", msg)
	}
}

func TestDecodeEntities(t *testing.T) {
	p := NewParser("Borak")
	msg := p.ParseChatMessage(Entry{Message: "You auction, 'WTS shield 50&PCT; off &AMP; more'"})
	if msg == nil || msg.Content != "WTS shield 50% off & more" {
		t.Fatalf("entity decode: %+v", msg)
	}
}

func TestPetSpamSuppressed(t *testing.T) {
	p := NewParser("Borak")

	if msg := p.ParseChatMessage(Entry{Message: "Gobaner says, 'Following you, Master.'"}); msg != nil {
		t.Errorf("pet say leaked: %+v", msg)
	}
	if msg := p.ParseChatMessage(Entry{Message: "Gobaner tells you, 'Attacking a rat Master.'"}); msg != nil {
		t.Errorf("pet attack tell leaked: %+v", msg)
	}
	// A real message with similar shape still goes through.
	if msg := p.ParseChatMessage(Entry{Message: "Mira says, 'following you around all day'"}); msg == nil {
		t.Error("player message suppressed as pet spam")
	}
}

func TestDieRollAdjacency(t *testing.T) {
	roller := "**A Magic Die is rolled by Borak."
	result := "**It could have been any number from 1 to 100, but this time it turned up a 42."

	p := NewParser("Borak")
	if msg := p.ParseChatMessage(Entry{Message: roller}); msg != nil {
		t.Fatalf("opener emitted %+v", msg)
	}
	msg := p.ParseChatMessage(Entry{Message: result})
	if msg == nil {
		t.Fatal("adjacent result not emitted")
	}
	if msg.Channel != ChannelRandom || msg.Sender != "Borak" || msg.Content != "42 (1-100)" {
		t.Errorf("roll message: %+v", msg)
	}
	if !msg.IsOutgoing {
		t.Error("own roll should be outgoing")
	}

	// Any intervening line breaks the pair, even a non-chat one.
	p = NewParser("Borak")
	p.ParseChatMessage(Entry{Message: roller})
	p.ParseChatMessage(Entry{Message: "You begin casting Gate."})
	if msg := p.ParseChatMessage(Entry{Message: result}); msg != nil {
		t.Errorf("separated result emitted: %+v", msg)
	}

	// A result with no opener at all.
	p = NewParser("Borak")
	if msg := p.ParseChatMessage(Entry{Message: result}); msg != nil {
		t.Errorf("orphan result emitted: %+v", msg)
	}
}

func TestParseWho(t *testing.T) {
	p := NewParser("Borak")

	if msg := p.ParseWho(Entry{Message: "Players on EverQuest:"}); msg != nil {
		t.Fatalf("header emitted %+v", msg)
	}
	p.ParseWho(Entry{Message: "---------------------------"})
	p.ParseWho(Entry{Message: "[60 Warrior] Borak (Barbarian) <Clan>"})
	msg := p.ParseWho(Entry{Message: "There is 1 player in East Commonlands."})
	if msg == nil {
		t.Fatal("summary did not close the block")
	}
	if msg.Channel != ChannelWho || msg.Sender != "Who" {
		t.Errorf("who message: %+v", msg)
	}
	if !strings.Contains(msg.Content, "[60 Warrior] Borak") ||
		!strings.HasPrefix(msg.Content, "Players on EverQuest:") {
		t.Errorf("aggregated content:\n%s", msg.Content)
	}

	// Standalone no-match line outside a block.
	msg = p.ParseWho(Entry{Message: "There are no players in EverQuest that match those who filters."})
	if msg == nil || msg.Channel != ChannelWho {
		t.Fatalf("no-match message: %+v", msg)
	}

	// A "There " line with no open block emits nothing.
	if msg := p.ParseWho(Entry{Message: "There is 1 player in East Commonlands."}); msg != nil {
		t.Errorf("summary without header emitted %+v", msg)
	}
}

func TestSpellAndCombatLines(t *testing.T) {
	p := NewParser("Borak")

	if name, ok := p.ParseCasting(Entry{Message: "You begin casting Minor Healing."}); !ok || name != "Minor Healing" {
		t.Errorf("ParseCasting: %q %v", name, ok)
	}
	if item, ok := p.ParseItemGlow(Entry{Message: "Your Journeyman's Boots begins to glow."}); !ok || item != "Journeyman's Boots" {
		t.Errorf("ParseItemGlow: %q %v", item, ok)
	}
	if name, ok := p.ParseWornOff(Entry{Message: "Your Courage spell has worn off."}); !ok || name != "Courage" {
		t.Errorf("ParseWornOff: %q %v", name, ok)
	}

	if target, amount, ok := p.ParseYourDamage(Entry{Message: "You slash a gnoll pup for 12 points of damage."}); !ok || target != "a gnoll pup" || amount != 12 {
		t.Errorf("ParseYourDamage: %q %d %v", target, amount, ok)
	}
	if target, amount, ok := p.ParseNonMeleeDamage(Entry{Message: "A gnoll pup was hit by non-melee for 44 points of damage."}); !ok || target != "A gnoll pup" || amount != 44 {
		t.Errorf("ParseNonMeleeDamage: %q %d %v", target, amount, ok)
	}
	if attacker, target, amount, ok := p.ParseOtherDamage(Entry{Message: "Mira pierces a gnoll pup for 7 points of damage."}); !ok || attacker != "Mira" || target != "a gnoll pup" || amount != 7 {
		t.Errorf("ParseOtherDamage: %q %q %d %v", attacker, target, amount, ok)
	}
	if target, ok := p.ParseYouSlain(Entry{Message: "You have slain a gnoll pup!"}); !ok || target != "a gnoll pup" {
		t.Errorf("ParseYouSlain: %q %v", target, ok)
	}
	if !p.IsOtherSlain(Entry{Message: "A gnoll pup has been slain by Mira!"}) {
		t.Error("IsOtherSlain missed")
	}
	if !p.IsDeath(Entry{Message: "You have been slain by a gnoll pup!"}) {
		t.Error("IsDeath missed")
	}
	if !p.IsCastFailure(Entry{Message: "Your spell fizzles!"}) {
		t.Error("IsCastFailure missed fizzle")
	}
	if !p.IsCastFailure(Entry{Message: "Your target resisted the Tashani spell."}) {
		t.Error("IsCastFailure missed resist")
	}
}

func TestGameStateLines(t *testing.T) {
	p := NewParser("Borak")

	if !p.IsLoading(Entry{Message: "LOADING, PLEASE WAIT..."}) {
		t.Error("IsLoading missed")
	}
	if !p.IsZoneChange(Entry{Message: "You have entered East Commonlands."}) {
		t.Error("IsZoneChange missed")
	}
	if !p.IsCampStart(Entry{Message: "It will take you about 30 seconds to prepare your camp."}) {
		t.Error("IsCampStart missed")
	}
	if !p.IsCampAbandon(Entry{Message: "You abandon your preparations to camp."}) {
		t.Error("IsCampAbandon missed")
	}
	if !p.IsWelcome(Entry{Message: "Welcome to EverQuest!"}) {
		t.Error("IsWelcome missed")
	}
	if !p.IsBlacklisted(Entry{Message: "You feel quite amicable."}) {
		t.Error("IsBlacklisted missed")
	}

	if kind, ok := p.BuffWarning(Entry{Message: "You feel as if you are about to fall."}); !ok || kind != "levitation" {
		t.Errorf("BuffWarning levitation: %q %v", kind, ok)
	}
	if kind, ok := p.BuffWarning(Entry{Message: "You feel yourself starting to appear."}); !ok || kind != "invisibility" {
		t.Errorf("BuffWarning invisibility: %q %v", kind, ok)
	}
	if kind, ok := p.BuffWarning(Entry{Message: "You feel as if you are about to look like yourself again."}); !ok || kind != "illusion" {
		t.Errorf("BuffWarning illusion: %q %v", kind, ok)
	}
}
