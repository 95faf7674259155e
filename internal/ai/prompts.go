package ai

import (
	"fmt"
	"strings"

	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

// platformFAQ grounds the FAQ assistant.
const platformFAQ = `LokNiti is a community platform scoped to localities.
- Residents register under a locality and only see content from it.
- Posts are general updates, events, polls, petitions or announcements (moderators only).
- Events can be attended; the organizer attends automatically.
- Polls allow one vote per resident.
- Petitions collect one signature per resident; the locality is notified at 50%, 75% and 100% of the goal.
- Discussions allow one level of replies; deleting a comment with replies keeps the replies.
- Points are earned for posting, hosting events, voting, signing and starting discussions.`

// describePost renders the post and its sub-entity as prompt context.
func describePost(p *models.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\nTitle: %s\nLocality: %s\nPriority: %s\nDescription: %s\n",
		p.Type, p.Title, p.Locality, p.Priority, p.Description)

	if e := p.Event; e != nil {
		fmt.Fprintf(&b, "Event starts: %s\nLocation: %s\n", e.StartDate.Format("2 Jan 2006 15:04"), e.Location)
		if e.Duration > 0 {
			fmt.Fprintf(&b, "Duration: %d minutes\n", e.Duration)
		}
		fmt.Fprintf(&b, "Attendees: %d\n", len(e.Attendees))
	}
	if pl := p.Poll; pl != nil {
		if pl.Question != "" {
			fmt.Fprintf(&b, "Poll question: %s\n", pl.Question)
		}
		for _, o := range pl.Options {
			fmt.Fprintf(&b, "Option %q: %d votes\n", o.Label, o.Votes)
		}
	}
	if pt := p.Petition; pt != nil {
		fmt.Fprintf(&b, "Petition target: %s\nSignatures: %d of %d\n", pt.Target, pt.Signatures, pt.Goal)
	}
	return b.String()
}

func summaryPrompt(p *models.Post) string {
	return "Summarize the following community post in 2-3 plain sentences suitable " +
		"for reading aloud. Do not add facts that are not present.\n\n" + describePost(p)
}

func visualizationPrompt(p *models.Post) string {
	return `Assess the community impact of the post below. Respond with only a JSON object of this shape:
{"headline": string, "impactScore": integer 0-100,
 "affectedGroups": [{"group": string, "impact": "low"|"medium"|"high"}],
 "metrics": [{"label": string, "value": number}],
 "recommendation": string}

` + describePost(p)
}

func faqPrompt(question string) string {
	return "Answer the resident's question about the platform using only the facts below. " +
		"If the facts do not cover it, say so briefly.\n\n" + platformFAQ +
		"\n\nQuestion: " + question
}
