package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"petscan/internal/biometry"
	"petscan/internal/history"
	"petscan/internal/textutil"
)

func candidateTable(candidates []biometry.Candidate) string {
	rows := make([][]string, 0, len(candidates))
	for i, cand := range candidates {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(cand.PetID, 10),
			textutil.Fallback(cand.Name, "-"),
			textutil.SpeciesLabel(cand.Species),
			textutil.Fallback(textutil.TitleCase(cand.Breed), "-"),
			textutil.Percent(cand.Similarity),
			yesNo(cand.HasContactPermission),
		})
	}
	return renderTable(
		[]string{"#", "Pet ID", "Name", "Species", "Breed", "Similarity", "Contact"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// profileLines renders an identified profile as indented status lines.
func profileLines(profile *biometry.Profile, similarity float64, contactLink string, colorize bool) []string {
	if profile == nil {
		return nil
	}
	title := fmt.Sprintf("%s %s", textutil.SpeciesEmoji(profile.Species), textutil.Fallback(profile.Name, "Sem nome"))
	lines := renderSectionHeader(title, colorize)

	if profile.IsLost {
		lines = append(lines, renderStatusLine("Lost", statusError, "this pet is flagged as lost", colorize))
	}
	if similarity > 0 {
		lines = append(lines, renderStatusLine("Similarity", statusOK, textutil.Percent(similarity), colorize))
	}
	lines = append(lines,
		renderStatusLine("Pet ID", statusInfo, strconv.FormatInt(profile.ID, 10), colorize),
		renderStatusLine("Species", statusInfo, textutil.SpeciesLabel(profile.Species), colorize),
	)
	if profile.Breed != "" {
		lines = append(lines, renderStatusLine("Breed", statusInfo, textutil.TitleCase(profile.Breed), colorize))
	}
	if profile.Sex != "" {
		lines = append(lines, renderStatusLine("Sex", statusInfo, textutil.SexLabel(profile.Sex), colorize))
	}
	if profile.OwnerName != "" {
		lines = append(lines, renderStatusLine("Owner", statusInfo, profile.OwnerName, colorize))
	}
	if profile.OwnerPhone != "" {
		lines = append(lines, renderStatusLine("Phone", statusInfo, profile.OwnerPhone, colorize))
	}
	if contactLink != "" {
		lines = append(lines, renderStatusLine("Contact", statusInfo, contactLink, colorize))
	}
	if len(profile.Vaccines) > 0 {
		titles := make([]string, 0, len(profile.Vaccines))
		for _, v := range profile.Vaccines {
			if date, ok := v.Date(); ok {
				titles = append(titles, fmt.Sprintf("%s (%s)", v.Title, date.Format("02/01/2006")))
				continue
			}
			titles = append(titles, v.Title)
		}
		lines = append(lines, renderStatusLine("Vaccines", statusInfo, strings.Join(titles, ", "), colorize))
	}
	if len(profile.ActiveMedications) > 0 {
		names := make([]string, 0, len(profile.ActiveMedications))
		for _, m := range profile.ActiveMedications {
			names = append(names, strings.TrimSpace(m.Name+" "+m.Dosage))
		}
		lines = append(lines, renderStatusLine("Medications", statusWarn, strings.Join(names, ", "), colorize))
	}
	return lines
}

func historyTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		best := "-"
		if entry.BestPetID > 0 {
			best = fmt.Sprintf("%s (#%d, %s)", textutil.Fallback(entry.BestPetName, "?"), entry.BestPetID, textutil.Percent(entry.BestSimilarity))
		}
		detail := entry.Message
		if entry.ErrorMessage != "" {
			detail = entry.ErrorMessage
		}
		rows = append(rows, []string{
			entry.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
			entry.Mode,
			entry.Source,
			entry.Outcome,
			strconv.Itoa(entry.CandidateCount),
			best,
			entry.Latency.Round(time.Millisecond).String(),
			truncate(detail, 48),
		})
	}
	return renderTable(
		[]string{"Submitted", "Mode", "Source", "Outcome", "Matches", "Best", "Latency", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
