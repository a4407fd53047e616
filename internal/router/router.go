package router

import (
	"net/http"

	"github.com/workbridge/backend/internal/auth"
	"github.com/workbridge/backend/internal/handlers"
)

// New returns an http.Handler serving the API under /api/v1.
// All workflow routes run behind the actor middleware; the core performs
// authorization only, against the stored engagement parties.
func New(
	authHandler *auth.Handler,
	workflow *handlers.WorkflowHandler,
	wallets *handlers.WalletHandler,
	contests *handlers.ContestHandler,
	requireActor func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	authed := func(h http.HandlerFunc) http.Handler {
		return requireActor(h)
	}

	mux.Handle("GET /api/v1/engagements", authed(workflow.ListEngagements))
	mux.Handle("GET /api/v1/engagements/{id}", authed(workflow.GetEngagement))

	mux.Handle("POST /api/v1/engagements/{id}/agreement/sign-client", authed(workflow.SignAsClient))
	mux.Handle("POST /api/v1/engagements/{id}/agreement/sign-worker", authed(workflow.SignAsWorker))
	mux.Handle("GET /api/v1/engagements/{id}/agreement", authed(workflow.GetAgreement))

	mux.Handle("POST /api/v1/engagements/{id}/handover", authed(workflow.SubmitHandover))
	mux.Handle("GET /api/v1/engagements/{id}/handover", authed(workflow.GetHandover))
	mux.Handle("POST /api/v1/engagements/{id}/handover/accept", authed(workflow.AcceptHandover))
	mux.Handle("POST /api/v1/engagements/{id}/handover/dispute", authed(workflow.DisputeHandover))

	mux.Handle("POST /api/v1/engagements/{id}/ratings", authed(workflow.SubmitRating))
	mux.Handle("GET /api/v1/engagements/{id}/ratings", authed(workflow.ListRatings))

	mux.Handle("GET /api/v1/wallets/me", authed(wallets.GetMyWallet))
	mux.Handle("GET /api/v1/wallets/me/ledger", authed(wallets.ListMyLedger))

	mux.Handle("POST /api/v1/contests/{id}/entries", authed(contests.SubmitEntry))
	mux.Handle("GET /api/v1/contests/{id}/entries", authed(contests.ListEntries))
	mux.Handle("POST /api/v1/contest-entries/{id}/award", authed(contests.AwardEntry))
	mux.Handle("POST /api/v1/contest-entries/{id}/reject", authed(contests.RejectEntry))

	return mux
}
