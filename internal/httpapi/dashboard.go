package httpapi

import (
	"fmt"
	"net/http"
)

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Syncboard</title>
  <style>
    :root {
      --ink: #16222e;
      --paper: #f4f6f8;
      --card: #ffffff;
      --line: #d4dbe2;
      --ok: #1f9d66;
      --warn: #d98722;
      --err: #c2483f;
      --muted: #6b7a88;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: "Segoe UI", "Avenir Next", sans-serif;
      color: var(--ink);
      background: var(--paper);
      padding: 20px;
    }
    .shell { max-width: 960px; margin: 0 auto; display: grid; gap: 14px; }
    .bar {
      background: var(--card);
      border: 1px solid var(--line);
      border-radius: 10px;
      padding: 14px 16px;
      display: flex;
      justify-content: space-between;
      align-items: center;
    }
    h1 { margin: 0; font-size: 1.3rem; }
    .conn { font-size: 0.85rem; color: var(--muted); }
    .conn.up::before { content: "● "; color: var(--ok); }
    .conn.down::before { content: "● "; color: var(--err); }
    .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 14px; }
    .card {
      background: var(--card);
      border: 1px solid var(--line);
      border-radius: 10px;
      padding: 14px 16px;
    }
    .card h2 { margin: 0 0 8px; font-size: 1rem; }
    .status { font-weight: 600; }
    .status.idle { color: var(--muted); }
    .status.running { color: var(--ok); }
    .status.error { color: var(--err); }
    .meta { font-size: 0.85rem; color: var(--muted); margin-top: 4px; }
    progress { width: 100%; height: 8px; margin-top: 8px; }
    button {
      margin-top: 10px;
      border: 1px solid var(--line);
      border-radius: 6px;
      background: var(--paper);
      padding: 6px 12px;
      cursor: pointer;
    }
    ul { list-style: none; margin: 0; padding: 0; max-height: 260px; overflow-y: auto; }
    li { padding: 6px 0; border-bottom: 1px solid var(--line); font-size: 0.85rem; }
    li .t { color: var(--muted); margin-right: 8px; }
    li.error { color: var(--err); }
    li.unread { font-weight: 600; }
  </style>
</head>
<body>
  <div class="shell">
    <div class="bar">
      <h1>Syncboard</h1>
      <span id="conn" class="conn down">live feed down</span>
    </div>
    <div class="grid">
      <div class="card" id="card-nas">
        <h2>NAS</h2>
        <div class="status idle" data-status>idle</div>
        <div class="meta" data-meta></div>
        <progress value="0" max="100" data-progress hidden></progress>
        <button data-trigger="nas">Sync now</button>
      </div>
      <div class="card" id="card-sheets">
        <h2>Sheets</h2>
        <div class="status idle" data-status>idle</div>
        <div class="meta" data-meta></div>
        <progress value="0" max="100" data-progress hidden></progress>
        <button data-trigger="sheets">Sync now</button>
      </div>
    </div>
    <div class="grid">
      <div class="card">
        <h2>Activity</h2>
        <ul id="logs"></ul>
      </div>
      <div class="card">
        <h2>Notifications</h2>
        <ul id="notifications"></ul>
      </div>
    </div>
  </div>
  <script>
    function fmtTime(iso) {
      if (!iso) return "never";
      return new Date(iso).toLocaleString();
    }

    function renderSource(id, state) {
      var card = document.getElementById("card-" + id);
      if (!card || !state) return;
      var statusEl = card.querySelector("[data-status]");
      statusEl.textContent = state.triggerPending && state.status === "idle"
        ? "starting…" : state.status;
      statusEl.className = "status " + state.status;
      var meta = "last sync " + fmtTime(state.lastSync) +
        " · " + state.itemCount + " items";
      if (state.currentItem) meta += " · " + state.currentItem;
      card.querySelector("[data-meta]").textContent = meta;
      var bar = card.querySelector("[data-progress]");
      bar.hidden = state.status !== "running";
      bar.value = state.progress || 0;
    }

    function renderList(el, items, render) {
      el.innerHTML = "";
      items.slice().reverse().forEach(function (item) {
        el.appendChild(render(item));
      });
    }

    function render(snap) {
      renderSource("nas", snap.sources.nas);
      renderSource("sheets", snap.sources.sheets);
      var conn = document.getElementById("conn");
      conn.className = "conn " + (snap.connected ? "up" : "down");
      conn.textContent = snap.connected ? "live feed connected" : "live feed down";
      renderList(document.getElementById("logs"), snap.logs || [], function (entry) {
        var li = document.createElement("li");
        if (entry.kind === "error") li.className = "error";
        var t = document.createElement("span");
        t.className = "t";
        t.textContent = new Date(entry.timestamp).toLocaleTimeString();
        li.appendChild(t);
        li.appendChild(document.createTextNode(entry.message));
        return li;
      });
      renderList(document.getElementById("notifications"), snap.notifications || [], function (n) {
        var li = document.createElement("li");
        li.className = (n.read ? "" : "unread ") + (n.kind === "error" ? "error" : "");
        li.textContent = n.title + ": " + n.message;
        return li;
      });
    }

    document.querySelectorAll("[data-trigger]").forEach(function (btn) {
      btn.addEventListener("click", function () {
        fetch("/v1/sync/" + btn.dataset.trigger, { method: "POST" });
      });
    });

    function connect() {
      var proto = location.protocol === "https:" ? "wss://" : "ws://";
      var ws = new WebSocket(proto + location.host + "/v1/ws");
      ws.onmessage = function (msg) { render(JSON.parse(msg.data)); };
      ws.onclose = function () { setTimeout(connect, 3000); };
    }

    fetch("/v1/status").then(function (r) { return r.json(); }).then(render);
    connect();
  </script>
</body>
</html>
`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, dashboardHTML)
}
