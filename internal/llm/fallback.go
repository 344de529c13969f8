package llm

import (
	"context"
	"fmt"
	"strings"
)

// OpeningInstruction is the single user turn that seeds a new campaign.
const OpeningInstruction = "Begin the adventure. Introduce the starting scenario."

// rule pairs a keyword category with the narration it produces.
type rule struct {
	name     string
	keywords []string
	template string
}

func (r rule) matches(text string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

const openingTemplate = `The heavy oak door of the Prancing Stag swings shut behind you, %[1]s, and the roar of the storm outside fades to a dull drum. Lanterns sway from smoke-blackened rafters. A few travelers glance up at the %[2]s %[3]s in the doorway before returning to their cups.

Behind the bar, a broad-shouldered dwarf polishes a tankard and nods you toward an empty stool. Near the hearth, a hooded figure studies a worn map, tapping a spot marked with a crimson X. A notice nailed beside the door offers fifty gold crowns for news of the missing caravan from Millbrook.

You could approach the barkeep for the local gossip, join the hooded stranger by the fire, or read the notice more closely. What do you do?`

// Ordered by precedence; the first matching category wins.
var rules = []rule{
	{
		name:     "drink",
		keywords: []string{"drink", "ale", "beer", "tavern"},
		template: `The barkeep slides a foaming mug across the counter. The ale is dark and bitter, with a warmth that settles in your chest and loosens the knot between your shoulders.

As you drink, a grizzled patron leans closer. "Strange lights over the old watchtower these three nights," he mutters. "Folk who go looking don't come back the same."

You could press him for details, buy him another round, or finish your drink and head out. What do you do?`,
	},
	{
		name:     "investigate",
		keywords: []string{"statue", "fountain", "tower", "ruins", "examine", "inspect"},
		template: `You step closer. Moss has crept into every crack of the ancient stonework, but beneath it runs a line of carved runes, worn smooth by centuries of rain. One symbol, a coiled serpent, has been scratched clean very recently.

At its base you find fresh boot prints leading toward the treeline, and a scrap of blue cloth caught on a thorn.

You could follow the tracks, try to decipher the runes, or take the cloth to someone who might recognize it. What do you do?`,
	},
	{
		name:     "rest",
		keywords: []string{"rest", "sleep", "camp"},
		template: `You find a sheltered hollow and let exhaustion take you. The night passes in fitful dreams of deep water and a voice calling a name you almost recognize.

You wake at dawn, rested and whole. Your wounds have closed and your mind is clear, though the embers of your fire have been scattered as if something circled the camp while you slept.

You could search for whatever visited in the night, break camp and press on, or set a trap for its return. What do you do?`,
	},
	{
		name:     "question",
		keywords: []string{"ask", "talk", "question", "speak"},
		template: `The figure regards you for a long moment before answering. "You are not the first to ask," they say quietly, "but you may be the first to listen."

They tell you of a sealed vault beneath the old chapel, opened a fortnight ago by men wearing the sigil of a dead house. Since then, the well water has tasted of iron and the dogs will not stop howling.

You could ask about the sigil, offer payment for more, or thank them and leave. What do you do?`,
	},
	{
		name:     "combat",
		keywords: []string{"fight", "attack", "strike", "draw my sword"},
		template: `Steel rings as you close the distance. Your foe is quicker than they look, twisting aside from your first blow and answering with a vicious slash that whistles past your ear.

The fight spills across the floor, scattering chairs and onlookers. Roll a d20 for your next attack and add your modifier; your opponent is breathing hard and favoring their left side.

You could press the attack, feint toward the weak side, or try to end this without bloodshed. What do you do?`,
	},
	{
		name:     "search",
		keywords: []string{"search", "look for", "loot"},
		template: `You search methodically, running your fingers along seams and under loose boards. Most of what you find is dust and the droppings of rats, but behind a loose stone you discover a small oilcloth bundle.

Inside are three silver coins stamped with an unfamiliar crest, a brass key, and a note that reads only: "Midnight. The bell that does not ring."

You could pocket everything, search further, or seek out someone who knows the local bells. What do you do?`,
	},
	{
		name:     "flee",
		keywords: []string{"flee", "run away", "escape", "retreat"},
		template: `You turn and run. Branches whip at your face and your lungs burn as the sounds of pursuit crash through the undergrowth behind you.

You break from the trees onto a narrow bridge over a roaring gorge. The pursuit falters at the treeline; whatever hunts you seems unwilling to cross running water, for now.

You could cross and cut the ropes behind you, hide beneath the bridge, or turn and face them at the choke point. What do you do?`,
	},
	{
		name:     "magic",
		keywords: []string{"cast", "spell", "magic"},
		template: `You draw on the weave and the air grows taut, tasting of copper and lightning. Arcane syllables leave your lips and light blooms between your fingers, bright enough to throw every shadow into sharp relief.

The spell takes hold, but something answers it: a faint echo of power from somewhere below, like a bell struck in a sealed room.

You could follow the echo, let the spell fade and stay hidden, or push more power into it to see what answers. What do you do?`,
	},
	{
		name:     "greet",
		keywords: []string{"hello", "greet", "wave"},
		template: `Your greeting is met with a gap-toothed grin. "Well met, traveler! Not many friendly faces come through these days."

The speaker introduces themselves as Pell, a tinker with a cart full of oddments and a head full of rumors. They offer to trade news for a meal, and hint that they know the safest road through the Hollow Wood.

You could share a meal with Pell, browse the cart, or ask about the road. What do you do?`,
	},
}

var genericTemplates = []string{
	`The world shifts around your choice. Somewhere in the distance a bell tolls, and the wind carries the smell of rain and woodsmoke.

A raven lands on a nearby post, tilting its head as if weighing you. When it takes flight, it drops something that glints as it falls.

You could investigate what the raven dropped, continue on your path, or take a moment to get your bearings. What do you do?`,
	`You act, and the consequences ripple outward. A pair of guards in the colors of the local baron stop to watch you, muttering to each other before one strides over.

"Papers, stranger," he says, though his eyes keep drifting toward the road behind you, as though he expects trouble from that direction.

You could cooperate, bluff your way past, or ask what has the guards so nervous. What do you do?`,
	`The moment passes, and the path ahead divides. To the left, a worn road winds toward a village where chimney smoke rises. To the right, a faint trail climbs into hills crowned with broken standing stones.

From the stones comes a sound like distant singing, gone as soon as you try to listen for it.

You could head to the village, climb toward the stones, or make camp and wait for daylight. What do you do?`,
}

// Fallback generates canned narration without a remote model. It never fails.
type Fallback struct{}

// NewFallback returns the local keyword-matching provider.
func NewFallback() *Fallback {
	return &Fallback{}
}

// Generate picks a template by the last user message. The opening scene wins
// on a new campaign or an explicit "begin"; otherwise the first matching
// keyword category wins; otherwise a generic template rotates by turn count.
func (f *Fallback) Generate(_ context.Context, req Request) (string, error) {
	text := strings.ToLower(req.LastUserMessage())

	if req.Turn == 0 || strings.Contains(text, "begin") {
		c := req.Character
		return fmt.Sprintf(openingTemplate, c.Name, c.Race, c.Class), nil
	}

	for _, r := range rules {
		if r.matches(text) {
			return r.template, nil
		}
	}

	turn := req.Turn
	if turn < 0 {
		turn = -turn
	}
	return genericTemplates[turn%len(genericTemplates)], nil
}

// Name returns the backend identifier.
func (f *Fallback) Name() string { return string(KindLocal) }

// Close is a no-op.
func (f *Fallback) Close() error { return nil }
