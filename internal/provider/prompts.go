package provider

import (
	"fmt"
	"strings"

	"github.com/photoreach/club-outreach/internal/domain"
)

// Section markers the research model is instructed to emit. Parsing keys on
// these exact strings.
const (
	markerIntroduction = "=== INTRODUCTION EMAIL RESEARCH ==="
	markerCheckup      = "=== CHECK-UP EMAIL RESEARCH ==="
	markerAcceptance   = "=== ACCEPTANCE EMAIL RESEARCH ==="
)

const researchSystemPrompt = "You are a research assistant with web search capabilities. " +
	"You must search the internet to find specific, current information about photography clubs and communities. " +
	"Always use web search to find real, up-to-date information rather than relying on training data. " +
	"Focus on concrete details: recent events, specific activities, and unique characteristics of each club. " +
	"Structure your response with three distinct sections for different email types."

const contentSystemPrompt = "You are a partnerships specialist writing personalized outreach to photography clubs. " +
	"Generate ONLY the requested personalized sentences, nothing else. " +
	"Do not include any email template or other content."

func buildResearchPrompt(info ClubInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Search the web and find specific, current information about the photography club %q.\n\n", info.Name)
	b.WriteString("Search for and report on: recent activities and exhibitions (with dates), upcoming events, " +
		"photography specialties, notable achievements, unique characteristics, community projects, " +
		"member highlights, club history, online engagement, educational programs, club structure, " +
		"and how they communicate with members.\n\n")

	b.WriteString("Club details to help your search:\n")
	fmt.Fprintf(&b, "- Name: %s\n", info.Name)
	if info.Country != "" {
		fmt.Fprintf(&b, "- Country: %s\n", info.Country)
	}
	if info.Website != "" {
		fmt.Fprintf(&b, "- Website: %s\n", info.Website)
	}
	if len(info.RecentPosts) > 0 {
		b.WriteString("- Recent posts from their website feed:\n")
		for _, title := range info.RecentPosts {
			fmt.Fprintf(&b, "  - %s\n", title)
		}
	}

	b.WriteString("\nProvide concrete findings for this specific club, not generic information. ")
	b.WriteString("Format your response with exactly these three sections:\n\n")

	b.WriteString(markerIntroduction + "\n")
	b.WriteString("Findings for a first-contact email: recent impressive activities, specialties that align " +
		"with photo-editing software, characteristics that show we have done our research.\n\n")

	b.WriteString(markerCheckup + "\n")
	b.WriteString("Findings for a follow-up email: upcoming events or deadlines, current challenges, " +
		"seasonal competitions, time-sensitive opportunities.\n\n")

	b.WriteString(markerAcceptance + "\n")
	b.WriteString("Findings for after they accept: club structure and leadership, membership size, " +
		"how they handle member benefits, best channels to reach all members.\n\n")

	b.WriteString("If you cannot find specific information about this exact club, say so clearly in each " +
		"section and be honest about the limitations.")

	return b.String()
}

func buildContentPrompt(clubName, researchText string, emailType domain.EmailType) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are writing the personalized addition for a %s email to the photography club %q.\n\n", emailType, clubName)
	b.WriteString("CLUB RESEARCH:\n")
	b.WriteString(researchText)
	b.WriteString("\n\nGenerate ONLY 1-2 personalized sentences to be inserted after the sender's introduction.\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Start with \"I read about...\", \"I came across...\", \"I noticed...\" or \"I was impressed by...\"\n")
	fmt.Fprintf(&b, "- Reference specific research findings about %s\n", clubName)
	b.WriteString("- Connect naturally to the benefits of professional photo-editing software\n")
	b.WriteString("- Professional and confident, maximum 2 sentences\n")
	b.WriteString("- Return ONLY the personalized sentences, nothing else\n")

	return b.String()
}

// parseSections splits the research text on the three section markers. When
// markers are missing the full text is used for every section, so a sloppy
// model response degrades to unsectioned research instead of empty emails.
func parseSections(full string) (intro, checkup, acceptance string) {
	iIdx := strings.Index(full, markerIntroduction)
	cIdx := strings.Index(full, markerCheckup)
	aIdx := strings.Index(full, markerAcceptance)

	if iIdx == -1 && cIdx == -1 && aIdx == -1 {
		return full, full, full
	}

	cut := func(start, markerLen, end int) string {
		if start == -1 {
			return ""
		}
		s := start + markerLen
		if end == -1 || end < s {
			end = len(full)
		}
		return strings.TrimSpace(full[s:end])
	}

	intro = cut(iIdx, len(markerIntroduction), cIdx)
	checkup = cut(cIdx, len(markerCheckup), aIdx)
	acceptance = cut(aIdx, len(markerAcceptance), -1)
	return intro, checkup, acceptance
}
