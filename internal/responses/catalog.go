package responses

import (
	"fmt"

	"github.com/suPer8Hu/mood-chat/internal/mood"
)

const (
	DefaultReply    = "I'm here to listen."
	DefaultFollowUp = "Is there anything else you'd like to share?"
)

// Catalog holds the per-label reply and follow-up candidates. The two tables
// are keyed independently; a label missing from one does not affect the other.
type Catalog struct {
	replies   map[mood.Label][]string
	followUps map[mood.Label][]string
}

// NewCatalog copies the tables and drops empty candidate strings and labels
// left without candidates.
func NewCatalog(replies, followUps map[mood.Label][]string) (*Catalog, error) {
	r, err := copyTable(replies)
	if err != nil {
		return nil, fmt.Errorf("replies: %w", err)
	}
	f, err := copyTable(followUps)
	if err != nil {
		return nil, fmt.Errorf("follow-ups: %w", err)
	}
	return &Catalog{replies: r, followUps: f}, nil
}

func copyTable(in map[mood.Label][]string) (map[mood.Label][]string, error) {
	out := make(map[mood.Label][]string, len(in))
	for label, candidates := range in {
		if !label.Valid() {
			return nil, fmt.Errorf("unknown label %q", label)
		}
		kept := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if c != "" {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			out[label] = kept
		}
	}
	return out, nil
}

func (c *Catalog) Replies(l mood.Label) []string {
	return append([]string(nil), c.replies[l]...)
}

func (c *Catalog) FollowUps(l mood.Label) []string {
	return append([]string(nil), c.followUps[l]...)
}

// Default returns the built-in tables.
func Default() *Catalog {
	c, err := NewCatalog(defaultReplies, defaultFollowUps)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultReplies = map[mood.Label][]string{
	mood.Depression: {
		"I'm really sorry you're feeling this way. You're not alone, and it's okay to ask for help. 💜",
		"It’s brave of you to share your feelings. Remember, even the darkest nights end with sunrise. 🌅",
		"You deserve kindness, especially from yourself. Would you like to talk about what’s been hurting most? 💙",
	},
	mood.Borderline: {
		"It sounds like you're experiencing intense emotions. You matter, and you deserve relationships that feel safe and supportive. 💙",
		"Your feelings are valid. Even when emotions feel overwhelming, you’re not alone. 🫂",
		"You are worthy of stability and peace. Let's talk more if you want. 🌿",
	},
	mood.Bipolar: {
		"It seems like your moods may be swinging. You're not alone, and finding stability is possible with the right support. 💚",
		"Managing highs and lows takes incredible strength. I'm here with you. 💫",
		"Even in chaos, there can be calm. Would you like to share how you’ve been feeling lately? 🌻",
	},
	mood.Anxiety: {
		"Feeling overwhelmed can be really difficult. You're doing your best, and that’s enough. 💙",
		"You are stronger than your worries. Let's take it one small step at a time. 🌼",
		"Anxiety may whisper fears, but you hold the power to overcome them. Shall we talk more? 🌿",
	},
	mood.MentalIllness: {
		"Living with mental health challenges isn’t easy, but you’re stronger than you think. 💛",
		"Every small effort you make matters. Your journey deserves respect and care. 🛤️",
		"I'm proud of you for showing up today. Would you like to share more about your experience? 🌸",
	},
	mood.Schizophrenia: {
		"It’s okay if you’re feeling confused or out of touch sometimes. You’re not broken, you deserve understanding and compassionate care. 💜",
		"Your experiences are valid, even when others may not understand them. I’m here for you. 🌈",
		"You're not alone. Would you like to talk about what’s been most confusing or challenging? 🧩",
	},
	mood.Normal: {
		"You seem happy and balanced! It's wonderful to see you taking care of yourself. 🌟",
		"It’s great that you're feeling good! Remember to keep nurturing your well-being. 🌸",
		"You’re doing great! Even small positive steps matter a lot. Keep shining. ☀️",
	},
	mood.PersonalityDisorder: {
		"You may feel misunderstood at times, but your feelings are valid. You're not alone, there’s help available. 💙",
		"Building healthy relationships can be challenging but possible. You are worthy of connection. 🤝",
		"Your experiences matter. Would you like to talk more about what’s been difficult recently? 🌿",
	},
	mood.Suicidal: {
		"I'm really concerned about you. You matter deeply. Please reach out to someone you trust or a mental health professional. ❤️",
		"Your life is precious, even when it feels heavy. You are not alone in this. 🕊️",
		"I hear you, and your pain is real. Would you like to talk about anything that could bring a little comfort now? 🧡",
	},
	mood.Stress: {
		"Stress can feel like a heavy weight. Have you had a chance to rest or take care of yourself today? 💚",
		"It’s okay to slow down. You deserve moments of peace and breathing space. 🌿",
		"One step at a time, you are doing the best you can. Would you like to talk about ways to ease the pressure? ☁️",
	},
}

var defaultFollowUps = map[mood.Label][]string{
	mood.Normal: {
		"What has been something positive for you lately?",
		"When do you feel the most at peace?",
		"Is there a hobby or activity you've been enjoying?",
		"What's something you're grateful for today?",
	},
	mood.Anxiety: {
		"Would you like to talk about what's worrying you the most?",
		"What usually helps you feel calmer during stressful times?",
		"Is there a safe space where you feel relaxed?",
		"Have you tried any breathing exercises or grounding techniques?",
	},
	mood.Depression: {
		"Would you like to share what's been weighing heavily on you?",
		"Have you been able to find anything that brings you comfort?",
		"What’s been the hardest part for you recently?",
		"Is there someone you feel safe opening up to?",
	},
	mood.Suicidal: {
		"I'm really concerned about you. Would you like to share what's been hurting the most?",
		"You're important. What’s one thing you wish others understood about your pain?",
		"Who in your life might offer you support right now?",
		"What would help you feel a little bit safer today?",
	},
	mood.Bipolar: {
		"How have your energy levels been lately?",
		"When you're feeling very up or down, what helps you the most?",
		"Would you like to talk about recent mood changes you've noticed?",
		"How do you usually cope during emotional highs or lows?",
	},
	mood.Schizophrenia: {
		"Have you been experiencing anything confusing or distressing lately?",
		"Would you like to talk about what’s been most challenging for you?",
		"Is there anything that helps you feel more connected to reality?",
		"I'm here for you. Would you like to share how you’ve been feeling?",
	},
	mood.Borderline: {
		"What emotions have been feeling strongest for you recently?",
		"Would you like to talk about any recent relationship experiences?",
		"Is there something that helps you feel more grounded during emotional times?",
		"When do you feel most understood and supported?",
	},
	mood.PersonalityDisorder: {
		"Have your relationships felt difficult lately?",
		"Would you like to share about times you felt misunderstood?",
		"Is there something that helps you feel safe and stable?",
		"How have your emotions been affecting you recently?",
	},
	mood.MentalIllness: {
		"Would you like to talk about your daily challenges?",
		"Have you found any coping strategies that work for you?",
		"Is there something that gives you hope even during tough times?",
		"You're doing your best. Would you like to share how you manage your days?",
	},
	mood.Stress: {
		"What's been the biggest source of stress for you lately?",
		"Have you had a chance to take a break recently?",
		"Would you like to share how you usually cope with stress?",
		"Is there something small you can do today to take care of yourself?",
	},
}
