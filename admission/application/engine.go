package application

import (
	"time"

	"aspirasi-gateway/admission/domain"
)

// PreCheck avalia as regras que dependem só da política (desligada e
// categoria). final=false quando o estado da identidade ainda precisa ser lido.
// Categoria vazia pula o filtro de categoria (consulta antes de escolher).
func PreCheck(p domain.Policy, cat domain.Category) (v domain.Verdict, final bool) {
	if !p.CooldownEnabled {
		return domain.Verdict{Allowed: true, Reason: domain.ReasonCooldownDisabled, Category: cat}, true
	}
	if cat != "" && !p.Allows(cat) {
		return domain.Verdict{Allowed: false, Reason: domain.ReasonCategoryNotAllowed, Category: cat}, true
	}
	return domain.Verdict{}, false
}

// Decide aplica as regras em ordem; a primeira que casar vence.
func Decide(p domain.Policy, st *domain.PeriodState, cat domain.Category, now time.Time) domain.Verdict {
	if v, final := PreCheck(p, cat); final {
		return v
	}

	allowed := domain.Verdict{Allowed: true, Reason: domain.ReasonAllowed, Category: cat}
	if st == nil {
		return allowed
	}
	if st.IsWhitelisted {
		allowed.Reason = domain.ReasonWhitelisted
		return allowed
	}
	if !st.HasSubmission() {
		return allowed
	}

	elapsed := now.Sub(st.LastSubmissionAt)
	if elapsed >= p.CooldownWindow {
		return allowed
	}
	if st.SubmissionCountInPeriod < p.MaxSubmissionsPerWindow {
		return allowed
	}

	return domain.Verdict{
		Allowed:          false,
		Reason:           domain.ReasonQuotaExceeded,
		Category:         cat,
		TimeRemaining:    p.CooldownWindow - elapsed,
		NextAllowedAt:    st.LastSubmissionAt.Add(p.CooldownWindow),
		LastSubmissionAt: st.LastSubmissionAt,
		SubmissionCount:  st.SubmissionCountInPeriod,
		MaxSubmissions:   p.MaxSubmissionsPerWindow,
		LastTrackingCode: st.LastTrackingCode,
	}
}

// QuotaFor calcula quanto da cota st ainda tem em now, pelas mesmas regras de
// janela de Decide.
func QuotaFor(p domain.Policy, st *domain.PeriodState, now time.Time) domain.Quota {
	q := domain.Quota{
		Unlimited: !p.CooldownEnabled || (st != nil && st.IsWhitelisted),
		Max:       p.MaxSubmissionsPerWindow,
		Remaining: p.MaxSubmissionsPerWindow,
	}
	if st == nil || !st.HasSubmission() || now.Sub(st.LastSubmissionAt) >= p.CooldownWindow {
		return q
	}
	q.Used = st.SubmissionCountInPeriod
	q.Remaining = max(q.Max-q.Used, 0)
	q.NextResetAt = st.LastSubmissionAt.Add(p.CooldownWindow)
	return q
}

// Advance devolve o estado após uma submissão aceita em now.
// A versão de st é preservada para a escrita condicional.
func Advance(p domain.Policy, st *domain.PeriodState, ipHash, trackingCode string, now time.Time) domain.PeriodState {
	var next domain.PeriodState
	if st != nil {
		next = *st
	}
	next.IPHash = ipHash

	if !next.HasSubmission() || now.Sub(next.LastSubmissionAt) >= p.CooldownWindow {
		next.SubmissionCountInPeriod = 1
		next.PeriodStartedAt = now
	} else {
		next.SubmissionCountInPeriod++
	}
	next.LastSubmissionAt = now
	next.TotalSubmissionCount++
	next.LastTrackingCode = trackingCode
	return next
}

// Retract desfaz o efeito de uma reserva sobre o estado atual cur.
//
// Se nenhuma outra submissão foi registrada depois da reserva, os campos do
// período voltam ao snapshot anterior. Se houve, só os contadores recuam.
// Whitelist e versão de cur são mantidos.
func Retract(cur domain.PeriodState, r Reservation) domain.PeriodState {
	next := cur
	if next.TotalSubmissionCount > 0 {
		next.TotalSubmissionCount--
	}

	if cur.LastTrackingCode == r.TrackingCode {
		var prev domain.PeriodState
		if r.Previous != nil {
			prev = *r.Previous
		}
		next.LastSubmissionAt = prev.LastSubmissionAt
		next.PeriodStartedAt = prev.PeriodStartedAt
		next.SubmissionCountInPeriod = prev.SubmissionCountInPeriod
		next.LastTrackingCode = prev.LastTrackingCode
		return next
	}

	if cur.PeriodStartedAt.Equal(r.State.PeriodStartedAt) && next.SubmissionCountInPeriod > 0 {
		next.SubmissionCountInPeriod--
	}
	return next
}
