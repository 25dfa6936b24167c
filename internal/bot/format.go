package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/linguaflow/internal/excel"
	"github.com/example/linguaflow/internal/notify"
	"github.com/example/linguaflow/internal/practice"
	"github.com/example/linguaflow/internal/scheduler"
	"github.com/example/linguaflow/pkg/models"
)

func formatProgress(p models.UserProgress, today practice.TodayStatus, courses []models.Course) string {
	var sb strings.Builder
	sb.WriteString("📊 Your progress\n\n")
	fmt.Fprintf(&sb, "XP: %d\n", p.TotalXP)
	fmt.Fprintf(&sb, "Streak: %d days 🔥\n", p.CurrentStreak)
	if today.Completed {
		sb.WriteString("Today: practiced ✅\n")
	} else {
		sb.WriteString("Today: not yet practiced\n")
	}

	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	ids := make([]string, 0, len(p.CoursesProgress))
	for id := range p.CoursesProgress {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		sb.WriteString("\nCourses:\n")
	}
	for _, id := range ids {
		cp := p.CoursesProgress[id]
		title := titles[id]
		if title == "" {
			title = id
		}
		fmt.Fprintf(&sb, "• %s: %d/%d lessons, %d XP\n", title, cp.CompletedLessons, cp.TotalLessons, cp.XP)
	}

	unlocked := 0
	for _, a := range p.Achievements {
		if a.Unlocked {
			unlocked++
		}
	}
	fmt.Fprintf(&sb, "\nAchievements: %d/%d 🏆", unlocked, len(p.Achievements))
	return sb.String()
}

func formatQuizOutcome(out practice.QuizOutcome) string {
	r := out.Result
	var sb strings.Builder
	if r.Passed {
		sb.WriteString("🎉 Quiz passed!\n\n")
	} else {
		sb.WriteString("📚 Keep practicing!\n\n")
	}
	fmt.Fprintf(&sb, "Score: %d%% (%d/%d correct)\n", r.Score, r.CorrectAnswers, r.TotalQuestions)
	if xp := r.XPEarned + out.Practice.XPEarned; xp > 0 {
		fmt.Fprintf(&sb, "+%d XP\n", xp)
	}
	writeAchievements(&sb, out.Achievements)
	return strings.TrimRight(sb.String(), "\n")
}

func formatCardBack(card models.Flashcard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n%s", card.Front, card.Back)
	if card.Pronunciation != "" {
		fmt.Fprintf(&sb, "\n🔊 %s", card.Pronunciation)
	}
	if card.Example != "" {
		fmt.Fprintf(&sb, "\n💬 %s", card.Example)
	}
	return sb.String()
}

func formatPractice(res practice.PracticeResult) string {
	var sb strings.Builder
	if res.FirstToday {
		fmt.Fprintf(&sb, "✅ Practice logged! +%d XP\n", res.XPEarned)
	} else {
		sb.WriteString("✅ You already practiced today.\n")
	}
	fmt.Fprintf(&sb, "Streak: %d days 🔥\n", res.Streak)
	writeAchievements(&sb, res.Achievements)
	return strings.TrimRight(sb.String(), "\n")
}

func writeAchievements(sb *strings.Builder, achievements []models.Achievement) {
	for _, a := range achievements {
		fmt.Fprintf(sb, "🏆 Achievement unlocked: %s\n", a.Name)
	}
}

func formatReminderStatus(st scheduler.Status) string {
	if !st.Settings.Enabled {
		return "🔕 Daily reminders are off. Use /remind on to enable them."
	}
	text := fmt.Sprintf("🔔 Daily reminder at %s", st.Settings.Time)
	if st.Settings.WeekdaysOnly {
		text += " on weekdays"
	}
	if st.FireAt != nil {
		text += fmt.Sprintf("\nNext: %s", st.FireAt.Format("Mon 02 Jan 15:04"))
	}
	return text
}

func formatImportResult(r *excel.ImportResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Import finished\n\nProcessed: %d\nCreated: %d\nUpdated: %d\nSkipped: %d\n",
		r.TotalProcessed, r.Created, r.Updated, r.Skipped)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\nErrors (%d):\n", len(r.Errors))
		for i, e := range r.Errors {
			if i == 10 {
				fmt.Fprintf(&sb, "... and %d more\n", len(r.Errors)-i)
				break
			}
			sb.WriteString(e + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatNotification(n notify.Notification) string {
	return fmt.Sprintf("%s\n\n%s", n.Title, n.Body)
}
