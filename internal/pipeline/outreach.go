package pipeline

import (
	"context"
	"errors"
	"slices"

	"leadgen-engine/internal/cadence"
	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/render"
)

// ResolveEmails looks up an address for every active recruiter without one.
func (p *Pipeline) ResolveEmails(ctx context.Context) *Report {
	rep := newReport(p.now())
	if err := p.resolveEmails(ctx, rep); err != nil {
		rep.Err = err.Error()
	}
	rep.FinishedAt = p.now().UTC()
	return rep
}

func (p *Pipeline) resolveEmails(ctx context.Context, rep *Report) error {
	if p.deps.Finder == nil {
		p.log.Info("email lookup disabled")
		return nil
	}
	recruiters, err := p.deps.Store.RecruitersWithoutEmail(ctx)
	if err != nil {
		return err
	}
	p.log.Info("recruiters without email", "count", len(recruiters))

	for _, r := range recruiters {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := p.resolveOne(ctx, r)
		o.Stage = StageResolve
		o.RecruiterID = r.ID
		p.record(rep, o)
	}
	return nil
}

func (p *Pipeline) resolveOne(ctx context.Context, r domain.Recruiter) Outcome {
	if r.CompanyDomain == "" {
		return Outcome{State: StateSkipped, Reason: "no company domain"}
	}
	email, err := p.deps.Finder.FindEmail(ctx, r.Name, r.CompanyDomain)
	if errors.Is(err, domain.ErrNotFound) {
		return Outcome{State: StateSkipped, Reason: "email not found"}
	}
	if err != nil {
		return failed("email lookup", err)
	}
	if err := p.deps.Store.SetRecruiterEmail(ctx, r.ID, email); err != nil {
		return failed("store email", err)
	}
	return Outcome{State: StateEmailResolved}
}

// SendDue evaluates the cadence for each recruiter with an address and
// sends what is due.
func (p *Pipeline) SendDue(ctx context.Context) *Report {
	rep := newReport(p.now())
	if err := p.sendDue(ctx, rep); err != nil {
		rep.Err = err.Error()
	}
	rep.FinishedAt = p.now().UTC()
	return rep
}

func (p *Pipeline) sendDue(ctx context.Context, rep *Report) error {
	if p.deps.Sender == nil {
		p.log.Info("email sending disabled")
		return nil
	}
	recruiters, err := p.deps.Store.DueRecruiters(ctx)
	if err != nil {
		return err
	}
	p.log.Info("recruiters with email", "count", len(recruiters))

	for _, r := range recruiters {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := p.sendOne(ctx, r)
		o.Stage = StageSend
		o.RecruiterID = r.ID
		p.record(rep, o)
	}
	return nil
}

func (p *Pipeline) sendOne(ctx context.Context, r domain.Recruiter) Outcome {
	if r.Status.Terminal() {
		return Outcome{State: StateSkipped, Reason: "recruiter " + string(r.Status)}
	}
	if r.Email == "" {
		return Outcome{State: StateSkipped, Reason: "no email"}
	}

	d := cadence.Decide(r.LastSentAt, r.SendCount, p.now())
	p.log.Debug("cadence evaluated", "recruiter_id", r.ID, "state", StateEvaluated,
		"send", d.Send, "email_type", d.Type, "reason", d.Reason)
	if !d.Send {
		return Outcome{State: StateSkipped, Reason: d.Reason}
	}

	jobs, err := p.deps.Store.JobsForRecruiter(ctx, r.ID)
	if err != nil {
		return failed("load jobs", err)
	}
	if len(jobs) == 0 {
		return Outcome{State: StateSkipped, Reason: "no jobs for recruiter", Type: d.Type}
	}
	primary := pickPrimary(jobs, p.cfg.PrimaryJob)

	company, err := p.deps.Store.Company(ctx, primary.CompanyID)
	if err != nil {
		return Outcome{State: StateFailed, Reason: "load company: " + err.Error(), JobID: primary.ID, Type: d.Type}
	}

	titles := make([]string, 0, len(jobs))
	for _, j := range jobs {
		titles = append(titles, j.Title)
	}
	msg, err := p.deps.Renderer.Render(render.Input{
		RecruiterName: r.Name,
		CompanyName:   company.Name,
		JobTitles:     titles,
		Type:          d.Type,
	})
	if err != nil {
		return Outcome{State: StateFailed, Reason: "render: " + err.Error(), JobID: primary.ID, Type: d.Type}
	}

	res := p.deps.Sender.Send(ctx, dispatch.Outbound{
		To:          r.Email,
		Subject:     msg.Subject,
		HTML:        msg.HTML,
		RecruiterID: r.ID,
		JobID:       primary.ID,
		Type:        d.Type,
	})
	if !res.OK {
		return Outcome{State: StateFailed, Reason: "send rejected", JobID: primary.ID, Type: d.Type}
	}
	return Outcome{State: StateSent, JobID: primary.ID, Type: d.Type, MessageID: res.MessageID}
}

// pickPrimary chooses the job an email is about. jobs is in insertion order.
func pickPrimary(jobs []domain.Job, policy PrimaryJob) domain.Job {
	if policy == PrimaryFirst {
		return jobs[0]
	}
	return slices.MaxFunc(jobs, func(a, b domain.Job) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
