package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

func listRecentEditsHandler(log *EditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 50
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		// ?since= replays forward from a reconnect cursor, oldest first;
		// otherwise the log reads newest first with ?before= paging back.
		if v := q.Get("since"); v != "" {
			since, err := strconv.ParseInt(v, 10, 64)
			if err != nil || since < 0 {
				writeError(w, http.StatusBadRequest, "invalid since cursor")
				return
			}
			records, err := log.Since(since, limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"edits": records})
			return
		}
		var before int64
		if v := q.Get("before"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				before = n
			}
		}
		records, err := log.ListRecent(limit, before)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var nextBefore int64
		if len(records) == limit {
			nextBefore = records[len(records)-1].Seq
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"edits":      records,
			"nextBefore": nextBefore,
		})
	}
}

// streamEditsHandler serves the live edit feed as server-sent events.
// The client's last-seen cursor comes from Last-Event-ID (or ?since=) so
// a reconnect replays the gap; each event's id field carries the Seq for
// the next reconnect. Idle connections get a comment heartbeat so proxies
// keep them open.
func streamEditsHandler(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		var since int64
		if v := r.Header.Get("Last-Event-ID"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				since = n
			}
		}
		if v := r.URL.Query().Get("since"); v != "" && since == 0 {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				since = n
			}
		}
		clientID := r.URL.Query().Get("client")
		if clientID == "" {
			clientID = r.RemoteAddr
		}

		sub, err := bus.Subscribe(r.Context(), clientID, since)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(bus.cfg.Heartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case rec, open := <-sub.C:
				if !open {
					// Dropped for falling behind; the client reconnects
					// with its cursor and replays.
					return
				}
				payload, err := json.Marshal(rec)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: edit\ndata: %s\n\n", rec.Seq, payload)
				flusher.Flush()
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
