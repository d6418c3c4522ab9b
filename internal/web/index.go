package web

// Single-page dashboard: portfolio cards, order book, chart canvas with drawing toolbar,
// event calendar and window controls.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Deskfolio</title>
  <style>
    :root { --bg:#0b0f17; --panel:#111827; --ink:#e5e7eb; --soft:#9ca3af; --up:#22c55e; --down:#ef4444; --line:#1f2937; }
    body.light { --bg:#ffffff; --panel:#f3f4f6; --ink:#111827; --soft:#6b7280; --line:#e5e7eb; }
    * { box-sizing:border-box; }
    body { margin:0; font-family:ui-monospace,Menlo,monospace; background:var(--bg); color:var(--ink); }
    header { display:flex; align-items:center; justify-content:space-between; padding:.5rem 1rem; border-bottom:1px solid var(--line); -webkit-app-region:drag; }
    header button { -webkit-app-region:no-drag; }
    button, select, input { font:inherit; background:var(--panel); color:var(--ink); border:1px solid var(--line); border-radius:4px; padding:.2rem .5rem; cursor:pointer; }
    button.active { border-color:#3b82f6; }
    main { display:grid; grid-template-columns:320px 1fr 280px; gap:1rem; padding:1rem; }
    section { background:var(--panel); border-radius:6px; padding:.75rem; }
    h2 { font-size:.8rem; text-transform:uppercase; color:var(--soft); margin:0 0 .5rem; }
    .asset { display:flex; justify-content:space-between; padding:.3rem 0; border-bottom:1px solid var(--line); font-size:.85rem; }
    .up { color:var(--up); } .down { color:var(--down); }
    .row { display:flex; justify-content:space-between; font-size:.8rem; position:relative; }
    .row .bar { position:absolute; right:0; top:0; bottom:0; opacity:.15; }
    #mid { text-align:center; padding:.3rem 0; font-weight:bold; }
    #toolbar { display:flex; gap:.3rem; margin-bottom:.5rem; flex-wrap:wrap; }
    canvas { width:100%; background:var(--bg); border-radius:4px; }
    .event { font-size:.8rem; border-left:3px solid #3b82f6; padding-left:.4rem; margin:.3rem 0; }
  </style>
</head>
<body>
<header>
  <strong>deskfolio</strong>
  <span id="feed" class="soft"></span>
  <span>
    <button id="theme">theme</button>
    <button data-window="minimize">_</button>
    <button data-window="maximize">[]</button>
    <button data-window="close">x</button>
  </span>
</header>
<main>
  <section>
    <h2>Portfolio</h2>
    <div id="totals"></div>
    <div id="assets"></div>
  </section>
  <section>
    <div id="toolbar">
      <select id="timeframe"></select>
      <button data-tool="trendline">trend</button>
      <button data-tool="horizontal">horiz</button>
      <button data-tool="vertical">vert</button>
      <button data-tool="rectangle">rect</button>
      <button data-tool="fibonacci">fib</button>
      <button id="visibility">hide</button>
      <button id="clear">clear</button>
      <button id="fit">fit</button>
    </div>
    <canvas id="chart" width="1200" height="600"></canvas>
  </section>
  <section>
    <h2>Order book <span id="pair"></span></h2>
    <div id="asks"></div>
    <div id="mid"></div>
    <div id="bids"></div>
    <h2 style="margin-top:1rem">Events</h2>
    <div id="events"></div>
  </section>
</main>
<script>
const $ = (id) => document.getElementById(id);
const api = (method, path, body) => fetch(path, {
  method, headers: {'Content-Type': 'application/json'}, body: body ? JSON.stringify(body) : undefined,
}).then(r => r.status === 204 ? null : r.json());

function renderPortfolio(s) {
  const t = s.totals;
  $('totals').innerHTML = '<div class="asset"><span>Balance</span><span>' + Number(t.balance).toFixed(2) + ' EUR</span></div>' +
    '<div class="asset"><span>P/L</span><span class="' + (Number(t.profit_loss) >= 0 ? 'up' : 'down') + '">' +
    Number(t.profit_loss).toFixed(2) + ' (' + Number(t.profit_loss_percent).toFixed(2) + '%)</span></div>';
  $('assets').innerHTML = s.assets.map(a => {
    const d = (s.daily || {})[a.symbol] || {gain_loss: 0, percent: 0};
    const dir = Number(a.current_price) >= Number(a.previous_price) ? 'up' : 'down';
    return '<div class="asset"><span>' + a.name + '</span><span class="' + dir + '">' + Number(a.current_price).toFixed(4) +
      '</span><span class="' + (Number(d.percent) >= 0 ? 'up' : 'down') + '">' + Number(d.percent).toFixed(2) + '%</span></div>';
  }).join('');
}

function rows(levels, cls) {
  return (levels || []).map(l => '<div class="row"><span class="' + cls + '">' + l.price + '</span><span>' + l.quantity +
    '</span><div class="bar" style="width:' + (l.depth_ratio * 100) + '%;background:var(--' + (cls === 'up' ? 'up' : 'down') + ')"></div></div>').join('');
}

function renderOrderbook(v) {
  $('pair').textContent = v.pair;
  $('asks').innerHTML = rows((v.asks || []).slice().reverse(), 'down');
  $('bids').innerHTML = rows(v.bids, 'up');
  $('mid').textContent = v.mid_price;
}

const canvas = $('chart');
const ctx = canvas.getContext('2d');

function paint(f) {
  ctx.clearRect(0, 0, canvas.width, canvas.height);
  ctx.fillStyle = f.text_color;
  (f.volume || []).forEach(b => { ctx.fillStyle = b.color; ctx.globalAlpha = .4; ctx.fillRect(b.x - b.width / 2, b.top, b.width, b.bottom - b.top); });
  ctx.globalAlpha = 1;
  (f.candles || []).forEach(c => {
    ctx.strokeStyle = ctx.fillStyle = c.bullish ? '#22c55e' : '#ef4444';
    ctx.beginPath(); ctx.moveTo(c.x, c.high); ctx.lineTo(c.x, c.low); ctx.stroke();
    ctx.fillRect(c.x - c.width / 2, Math.min(c.open, c.close), c.width, Math.max(1, Math.abs(c.close - c.open)));
  });
  (f.averages || []).forEach(p => {
    ctx.strokeStyle = p.color; ctx.lineWidth = 1; ctx.beginPath();
    p.points.forEach((pt, i) => i ? ctx.lineTo(pt.x, pt.y) : ctx.moveTo(pt.x, pt.y)); ctx.stroke();
  });
  (f.drawings || []).forEach(d => {
    ctx.globalAlpha = d.style.alpha || 1; ctx.strokeStyle = d.style.color; ctx.lineWidth = d.style.width;
    ctx.setLineDash(d.style.dash || []);
    if (d.kind === 'segment') { ctx.beginPath(); ctx.moveTo(d.from.x, d.from.y); ctx.lineTo(d.to.x, d.to.y); ctx.stroke(); }
    if (d.kind === 'rect') {
      if (d.style.fill) { ctx.fillStyle = d.style.fill; ctx.fillRect(d.from.x, d.from.y, d.to.x - d.from.x, d.to.y - d.from.y); }
      ctx.strokeRect(d.from.x, d.from.y, d.to.x - d.from.x, d.to.y - d.from.y);
    }
    if (d.kind === 'label') { ctx.fillStyle = d.style.color; ctx.fillText(d.text, d.from.x, d.from.y); }
    if (d.kind === 'handle') { ctx.beginPath(); ctx.arc(d.from.x, d.from.y, d.radius, 0, Math.PI * 2); ctx.stroke(); }
    ctx.setLineDash([]); ctx.globalAlpha = 1;
  });
}

const refresh = () => api('GET', '/chart/frame').then(paint);
const point = (e) => {
  const r = canvas.getBoundingClientRect();
  return {x: (e.clientX - r.left) * canvas.width / r.width, y: (e.clientY - r.top) * canvas.height / r.height};
};
let dragging = false;
canvas.addEventListener('mousedown', e => {
  const p = point(e);
  api('POST', '/drawing/drag', {action: 'begin', x: p.x, y: p.y}).then(res => {
    dragging = res.dragging;
    if (!dragging) return api('POST', '/drawing/pointer', {kind: 'down', x: p.x, y: p.y});
  }).then(refresh);
});
canvas.addEventListener('mousemove', e => {
  const p = point(e);
  api('POST', '/drawing/pointer', {kind: 'move', x: p.x, y: p.y}).then(refresh);
});
canvas.addEventListener('mouseup', () => { if (dragging) { dragging = false; api('POST', '/drawing/drag', {action: 'end'}).then(refresh); } });
canvas.addEventListener('wheel', e => { e.preventDefault(); api('POST', '/chart/zoom', {factor: e.deltaY < 0 ? 1.1 : 0.9}).then(paint); });

document.querySelectorAll('[data-tool]').forEach(b => b.onclick = () => {
  const active = b.classList.toggle('active');
  document.querySelectorAll('[data-tool]').forEach(o => o !== b && o.classList.remove('active'));
  api('POST', '/drawing/tool', {tool: active ? b.dataset.tool : ''});
});
document.querySelectorAll('[data-window]').forEach(b => b.onclick = () => api('POST', '/window/' + b.dataset.window));
$('visibility').onclick = () => api('POST', '/drawing/visibility').then(r => { $('visibility').textContent = r.visible ? 'hide' : 'show'; refresh(); });
$('clear').onclick = () => api('POST', '/drawing/clear').then(refresh);
$('fit').onclick = () => api('POST', '/chart/fit').then(paint);
$('theme').onclick = () => api('POST', '/theme/toggle').then(r => { document.body.classList.toggle('light', r.theme === 'light'); refresh(); });

['1m', '5m', '15m', '1h', '4h', '1d'].forEach(tf => $('timeframe').add(new Option(tf, tf)));
$('timeframe').onchange = e => api('PUT', '/orderbook/settings', {timeframe: e.target.value});
api('GET', '/orderbook').then(r => { $('timeframe').value = r.settings.timeframe; });
api('GET', '/theme').then(r => document.body.classList.toggle('light', r.theme === 'light'));

const now = new Date();
api('GET', '/events?year=' + now.getFullYear() + '&month=' + (now.getMonth() + 1)).then(list => {
  $('events').innerHTML = list.map(e => '<div class="event" style="border-color:' + (e.color || '#3b82f6') + '">' +
    e.date.slice(0, 10) + ' ' + (e.time || '') + ' ' + e.title + '</div>').join('');
});

new EventSource('/portfolio/stream').addEventListener('portfolio', e => renderPortfolio(JSON.parse(e.data)));
new EventSource('/orderbook/stream').addEventListener('orderbook', e => { renderOrderbook(JSON.parse(e.data)); refresh(); });
setInterval(() => api('GET', '/status').then(s => { $('feed').textContent = 'stream: ' + s.feed; }), 3000);
refresh();
</script>
</body>
</html>
`
