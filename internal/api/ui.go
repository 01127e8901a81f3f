package api

import (
	"net/http"
)

const operatorUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>SignalGrid - Operator</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: monospace; background: #1a1a2e; color: #eee; height: 100vh; display: flex; flex-direction: column; }
        header { background: #16213e; padding: 12px 20px; border-bottom: 1px solid #0f3460; display: flex; justify-content: space-between; align-items: center; }
        header h1 { font-size: 16px; font-weight: normal; }
        #status { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #status.connected { background: #1b4332; color: #95d5b2; }
        #status.disconnected { background: #7f1d1d; color: #fca5a5; }
        main { flex: 1; display: flex; overflow: hidden; }
        #nodes, #events { flex: 1; overflow-y: auto; padding: 10px; }
        #nodes { border-right: 1px solid #0f3460; }
        table { width: 100%; border-collapse: collapse; font-size: 12px; }
        td, th { padding: 4px 8px; text-align: left; border-bottom: 1px solid #0f3460; }
        tr.on td.state { color: #fbbf24; }
        button { background: #2563eb; border: none; border-radius: 4px; padding: 3px 8px; color: #fff; font-family: monospace; font-size: 11px; cursor: pointer; }
        .event { padding: 6px 10px; margin-bottom: 4px; background: #16213e; border-radius: 4px; border-left: 3px solid #0f3460; font-size: 12px; display: flex; gap: 10px; }
        .event.level-error { border-left-color: #dc2626; }
        .event.level-warn { border-left-color: #d97706; }
        .event.scope-node { border-left-color: #0891b2; }
        .event.scope-link { border-left-color: #7c3aed; }
        .event.scope-operator { border-left-color: #db2777; }
        .ts { color: #6b7280; min-width: 90px; }
        .name { color: #60a5fa; min-width: 130px; }
        .msg { color: #9ca3af; }
    </style>
</head>
<body>
    <header>
        <h1>SignalGrid</h1>
        <span id="status" class="disconnected">disconnected</span>
    </header>
    <main>
        <section id="nodes">
            <table>
                <thead><tr><th>pos</th><th>type</th><th>state</th><th>power</th><th></th></tr></thead>
                <tbody id="rows"></tbody>
            </table>
        </section>
        <section id="events"></section>
    </main>
    <script>
        const rows = document.getElementById('rows');
        const eventsEl = document.getElementById('events');
        const statusEl = document.getElementById('status');
        let refreshPending = false;

        function command(pos, action) {
            fetch('/nodes/' + pos + '/' + action, { method: 'POST' }).then(scheduleRefresh);
        }

        function refresh() {
            refreshPending = false;
            fetch('/nodes').then(function(res) { return res.json(); }).then(function(nodes) {
                rows.innerHTML = '';
                nodes.forEach(function(n) {
                    const tr = document.createElement('tr');
                    tr.className = n.powered ? 'on' : '';
                    [n.pos, n.type, n.powered ? 'on' : 'off', n.power].forEach(function(v, i) {
                        const td = document.createElement('td');
                        if (i === 2) td.className = 'state';
                        td.textContent = v;
                        tr.appendChild(td);
                    });
                    const td = document.createElement('td');
                    const btn = document.createElement('button');
                    btn.textContent = 'activate';
                    btn.onclick = function() { command(n.pos, 'activate'); };
                    td.appendChild(btn);
                    tr.appendChild(td);
                    rows.appendChild(tr);
                });
            });
        }

        function scheduleRefresh() {
            if (!refreshPending) {
                refreshPending = true;
                setTimeout(refresh, 250);
            }
        }

        function addEvent(e) {
            const div = document.createElement('div');
            div.className = 'event level-' + e.level + ' scope-' + e.event.split('.')[0];
            const fields = e.fields ? JSON.stringify(e.fields) : '';
            [['ts', (e.ts || '').substring(11, 23)], ['name', e.event], ['msg', (e.msg || '') + ' ' + fields]].forEach(function(p) {
                const span = document.createElement('span');
                span.className = p[0];
                span.textContent = p[1];
                div.appendChild(span);
            });
            eventsEl.insertBefore(div, eventsEl.firstChild);
            while (eventsEl.childNodes.length > 500) eventsEl.removeChild(eventsEl.lastChild);
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            ws.onopen = function() { statusEl.className = 'connected'; statusEl.textContent = 'connected'; refresh(); };
            ws.onclose = function() { statusEl.className = 'disconnected'; statusEl.textContent = 'disconnected'; setTimeout(connect, 2000); };
            ws.onmessage = function(msg) {
                const e = JSON.parse(msg.data);
                addEvent(e);
                if (e.event.startsWith('node.')) scheduleRefresh();
            };
        }
        connect();
    </script>
</body>
</html>`

// uiHandler serves the operator console.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(operatorUIHTML))
}
