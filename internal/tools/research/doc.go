// Package research provides the agent's external-world tools: the
// web_search and fetch_webpage actions named in the known action set,
// plus browser control for pages that need a real DOM to render.
//
// Tools:
//   - web_search: DuckDuckGo HTML search
//   - web_fetch: fetch a URL and convert it to markdown (the Plan
//     Executor's fetch_webpage action)
//   - browser_*: headless browser control via Rod (navigate, extract,
//     screenshot, click, type, close)
package research
