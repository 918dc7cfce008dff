package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/match"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

// ─── Auto-assign ────────────────────────────────────────────────────────────

// autoAssign gives every open, unassigned card the person behind the
// first rule whose keyword appears in its title or content.
func (r *run) autoAssign() error {
	people, err := r.people()
	if err != nil {
		return err
	}
	rules := MergeRules(r.opts.Rules)

	for _, c := range r.pb.cards {
		if c.Completed || len(c.Assignees) > 0 {
			continue
		}
		text := strings.ToLower(c.Title + " " + remote.PlainText(c.Content))
		rule, ok := firstRule(rules, text)
		if !ok {
			r.record(c, "assign", StatusSkipped, "no rule matched", nil)
			continue
		}
		person, ok := findPerson(people, rule.Role)
		if !ok {
			r.record(c, "assign", StatusFailed, "rule "+rule.Keyword+" → "+rule.Role,
				fmt.Errorf("no person matches role %q", rule.Role))
			continue
		}
		detail := fmt.Sprintf("rule %s → %s: %s", rule.Keyword, rule.Role, person.Name)
		ids := []int64{person.ID}
		r.mutate(c, "assign", detail, func() error {
			return r.updateCard(c, remote.CardUpdate{AssigneeIDs: &ids})
		})
	}
	if len(r.result.Outcomes) == 0 {
		r.result.Message = "no open unassigned cards"
	}
	return nil
}

func firstRule(rules []Rule, text string) (Rule, bool) {
	for _, rule := range rules {
		if strings.Contains(text, rule.Keyword) {
			return rule, true
		}
	}
	return Rule{}, false
}

// ─── Move-completed ─────────────────────────────────────────────────────────

// doneColumnMinScore is the lowest match score accepted for a named done
// column.
const doneColumnMinScore = 40

// moveCompleted moves every completed card into the done column.
func (r *run) moveCompleted() {
	done, ok := r.doneColumn()
	if !ok {
		if r.opts.DoneColumn != "" {
			r.result.Message = fmt.Sprintf("no column matches %q", r.opts.DoneColumn)
		} else {
			r.result.Message = "no done column found"
		}
		return
	}

	for _, c := range r.pb.cards {
		if !c.Completed || c.column.ID == done.ID {
			continue
		}
		detail := fmt.Sprintf("%s → %s", c.column.Title, done.Title)
		r.mutate(c, "move", detail, func() error {
			if err := r.e.client.MoveCard(r.ctx, r.pb.project.ID, c.ID, done.ID); err != nil {
				return err
			}
			colID, title, typ := done.ID, done.Title, done.Type
			r.patchLocal(c, index.CardPatch{ColumnID: &colID, ColumnTitle: &title, ColumnType: &typ})
			return nil
		})
	}
	if len(r.result.Outcomes) == 0 {
		r.result.Message = "all completed cards are already in " + done.Title
	}
}

func (r *run) doneColumn() (board.Column, bool) {
	if r.opts.DoneColumn != "" {
		i, _ := match.Best(r.opts.DoneColumn, r.pb.columns, doneColumnMinScore)
		if i < 0 {
			return board.Column{}, false
		}
		return r.pb.columns[i], true
	}
	return board.FindByType(r.pb.columns, board.TypeDone)
}

// ─── Escalate-overdue ───────────────────────────────────────────────────────

// overdueDays returns how many whole days c is past due at now.
func overdueDays(c remote.Card, now time.Time) int {
	if c.DueOn == nil || !c.Overdue(now) {
		return 0
	}
	return int(now.Sub(*c.DueOn).Hours() / 24)
}

// escalateOverdue marks, reassigns and comments on cards overdue by at
// least OverdueDays. Each action is attempted and recorded on its own.
func (r *run) escalateOverdue() error {
	now := r.e.now()
	var lead remote.Person
	haveLead := false
	if r.opts.AddLead {
		people, err := r.people()
		if err != nil {
			return err
		}
		lead, haveLead = findPerson(people, r.opts.LeadRole)
	}

	for _, c := range r.pb.cards {
		days := overdueDays(c.Card, now)
		if days < r.opts.OverdueDays {
			continue
		}

		if r.opts.MarkUrgent {
			if strings.HasPrefix(c.Title, r.opts.UrgentMarker) {
				r.record(c, "mark-urgent", StatusSkipped, "already marked", nil)
			} else {
				title := r.opts.UrgentMarker + c.Title
				r.mutate(c, "mark-urgent", title, func() error {
					return r.updateCard(c, remote.CardUpdate{Title: &title})
				})
			}
		}

		if r.opts.AddLead {
			switch {
			case !haveLead:
				r.record(c, "add-lead", StatusSkipped, fmt.Sprintf("no person matches role %q", r.opts.LeadRole), nil)
			case c.HasAssignee(lead.ID):
				r.record(c, "add-lead", StatusSkipped, lead.Name+" already assigned", nil)
			default:
				ids := append(c.AssigneeIDs(), lead.ID)
				r.mutate(c, "add-lead", lead.Name, func() error {
					return r.updateCard(c, remote.CardUpdate{AssigneeIDs: &ids})
				})
			}
		}

		if r.opts.Notify {
			body := fmt.Sprintf("<p>⚠️ This card is %d days overdue (due %s).</p>", days, c.DueOn.Format("2006-01-02"))
			r.mutate(c, "notify", fmt.Sprintf("%d days overdue", days), func() error {
				_, err := r.e.client.CreateComment(r.ctx, r.pb.project.ID, c.ID, body)
				return err
			})
		}
	}
	if len(r.result.Outcomes) == 0 {
		r.result.Message = fmt.Sprintf("no cards overdue by %d days or more", r.opts.OverdueDays)
	}
	return nil
}

// ─── Balance-workload ───────────────────────────────────────────────────────

// balanceWorkload moves excess open cards from assignees above MaxCards
// to assignees at least two below it. It is a first-fit greedy pass:
// overloaded assignees and their cards are taken in card list order, and
// each receiver is filled up to MaxCards-1 before the next one is used.
// Receivers with equal load are tried in list order.
func (r *run) balanceWorkload() error {
	people, err := r.people()
	if err != nil {
		return err
	}
	limit := r.opts.MaxCards

	load := map[int64]int{}
	names := map[int64]string{}
	var order []int64
	track := func(p remote.Person) {
		if _, ok := names[p.ID]; !ok {
			names[p.ID] = p.Name
			order = append(order, p.ID)
		}
	}
	var open []boardCard
	for _, c := range r.pb.cards {
		if c.Completed {
			continue
		}
		open = append(open, c)
		for _, a := range c.Assignees {
			track(a)
			load[a.ID]++
		}
	}
	for _, p := range people {
		track(p)
	}

	var overloaded []int64
	for _, id := range order {
		if load[id] > limit {
			overloaded = append(overloaded, id)
		}
	}
	if len(overloaded) == 0 {
		r.result.Message = fmt.Sprintf("workload already balanced (max %d open cards per assignee)", limit)
		return nil
	}

	receiver := func(c boardCard) (int64, bool) {
		for _, id := range order {
			if load[id] <= limit-2 && !c.HasAssignee(id) {
				return id, true
			}
		}
		return 0, false
	}

	for _, from := range overloaded {
		excess := load[from] - limit
		for _, c := range open {
			if excess == 0 {
				break
			}
			if !c.HasAssignee(from) {
				continue
			}
			excess--
			to, ok := receiver(c)
			if !ok {
				r.record(c, "reassign", StatusSkipped, "no underloaded assignee for "+names[from], nil)
				continue
			}
			ids := replaceAssignee(c.AssigneeIDs(), from, to)
			detail := fmt.Sprintf("%s → %s", names[from], names[to])
			if r.mutate(c, "reassign", detail, func() error {
				return r.updateCard(c, remote.CardUpdate{AssigneeIDs: &ids})
			}) {
				load[from]--
				load[to]++
			}
		}
	}
	return nil
}

func replaceAssignee(ids []int64, from, to int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == from {
			id = to
		}
		out = append(out, id)
	}
	return out
}
