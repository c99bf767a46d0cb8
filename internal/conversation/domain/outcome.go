package domain

import "github.com/google/uuid"

// OutcomeKind discriminates the variants of a TurnOutcome. Every branch of
// the turn algorithm produces exactly one kind.
type OutcomeKind string

const (
	OutcomeAskInfo          OutcomeKind = "ask_info"
	OutcomeQuoted           OutcomeKind = "quoted"
	OutcomeReferred         OutcomeKind = "referred"
	OutcomeSecurityBlocked  OutcomeKind = "security_blocked"
	OutcomeMaxMessages      OutcomeKind = "max_messages_closed"
	OutcomeAlreadyQualified OutcomeKind = "already_qualified_closed"
	OutcomeErrored          OutcomeKind = "errored"
)

// TurnOutcome is the result of processing one visitor message.
type TurnOutcome struct {
	Kind              OutcomeKind
	LeadID            uuid.UUID
	Classification    *Classification
	Quote             *Quote
	Reply             string
	ConversationEnded bool
	RequiresFollowUp  bool
}

func SecurityBlockedOutcome(leadID uuid.UUID) TurnOutcome {
	return TurnOutcome{
		Kind:              OutcomeSecurityBlocked,
		LeadID:            leadID,
		Reply:             ReplySecurityBlocked,
		ConversationEnded: true,
	}
}

func MaxMessagesOutcome(leadID uuid.UUID) TurnOutcome {
	return TurnOutcome{
		Kind:              OutcomeMaxMessages,
		LeadID:            leadID,
		Reply:             ReplyMaxMessages,
		ConversationEnded: true,
	}
}

func AlreadyQualifiedOutcome(leadID uuid.UUID) TurnOutcome {
	return TurnOutcome{
		Kind:              OutcomeAlreadyQualified,
		LeadID:            leadID,
		Reply:             ReplyAlreadyQualified,
		ConversationEnded: true,
	}
}

func AskInfoOutcome(leadID uuid.UUID, c Classification, reply string) TurnOutcome {
	cc := c
	return TurnOutcome{
		Kind:             OutcomeAskInfo,
		LeadID:           leadID,
		Classification:   &cc,
		Reply:            reply,
		RequiresFollowUp: len(c.MissingInfo) > 0,
	}
}

func QuotedOutcome(leadID uuid.UUID, c Classification, q Quote, reply string) TurnOutcome {
	cc, qq := c, q
	return TurnOutcome{
		Kind:              OutcomeQuoted,
		LeadID:            leadID,
		Classification:    &cc,
		Quote:             &qq,
		Reply:             reply,
		ConversationEnded: true,
	}
}

func ReferredOutcome(leadID uuid.UUID, c Classification, reply string) TurnOutcome {
	cc := c
	return TurnOutcome{
		Kind:             OutcomeReferred,
		LeadID:           leadID,
		Classification:   &cc,
		Reply:            reply,
		RequiresFollowUp: true,
	}
}

func ErroredOutcome(leadID uuid.UUID) TurnOutcome {
	return TurnOutcome{
		Kind:   OutcomeErrored,
		LeadID: leadID,
		Reply:  ReplyTechnicalDifficulties,
	}
}
