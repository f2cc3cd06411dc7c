// Package runtime holds the Generated Scraper Runtime contract (spec
// §4.5): the Python BaseScraper library every emitted scraper subclasses,
// embedded as a template string, plus the Go-side helpers that render a
// run's config into the __main__ invocation CodeGen's prompt targets and
// that validate a generated file still closes with that shape. Adapted
// from the teacher's internal/autopoiesis/toolgen.go template-rendering
// pattern, retargeted from Go tool stubs to a Python library file.
package runtime

import (
	"fmt"
	"strings"

	"scrapeforge/internal/artifact"
)

// BaseScraperSource is the Python runtime library every generated scraper
// imports as `from runtime import BaseScraper`. It is written to the
// project directory alongside generated_scraper.py so the subprocess can
// import it without a package install step.
const BaseScraperSource = `"""Generated Scraper Runtime: the BaseScraper contract.

Subclasses implement navigate, get_items, and parse_item; run() drives
setup, the collection loop, pagination, save, and teardown.
"""
import csv
import json
import hashlib
import os
import time
from abc import ABC, abstractmethod


class BaseScraper(ABC):
    def __init__(self, mode="headless", output_format="json", pagination_config=None, pagination_meta=None):
        self.mode = mode
        self.output_format = output_format
        self.pagination_config = pagination_config or {"mode": "first_page", "max_pages": 1}
        self.pagination_meta = pagination_meta or {}
        self.page = None
        self.browser = None
        self._playwright = None

    @abstractmethod
    def navigate(self, page):
        raise NotImplementedError

    @abstractmethod
    def get_items(self, page):
        raise NotImplementedError

    @abstractmethod
    def parse_item(self, item):
        raise NotImplementedError

    def smart_wait(self, selector, timeout=10000, state="visible"):
        self.page.wait_for_selector(selector, timeout=timeout, state=state)

    def scroll_down(self, times=3, delay=1.0):
        for _ in range(times):
            self.page.evaluate("window.scrollBy(0, document.body.scrollHeight)")
            time.sleep(delay)

    def _setup(self):
        from playwright.sync_api import sync_playwright
        self._playwright = sync_playwright().start()
        headless = self.mode != "headed"
        self.browser = self._playwright.chromium.launch(headless=headless)
        context_kwargs = {}
        if os.path.exists("storage_state.json"):
            context_kwargs["storage_state"] = "storage_state.json"
        context = self.browser.new_context(**context_kwargs)
        self.page = context.new_page()

    def _teardown(self):
        if self.browser:
            self.browser.close()
        if self._playwright:
            self._playwright.stop()

    @staticmethod
    def _content_hash(record):
        parts = [str(v).strip().lower() for v in record.values()]
        joined = "|".join(parts)
        return hashlib.sha256(joined.encode("utf-8")).hexdigest()

    def _collect_page(self, seen, records):
        raw_items = self.get_items(self.page)
        for raw in raw_items:
            parsed = self.parse_item(raw)
            if not isinstance(parsed, dict):
                print(f"diagnostic: parse_item returned non-dict: {type(parsed)}")
                continue
            if not any(v is not None for v in parsed.values()):
                continue
            h = self._content_hash(parsed)
            if h in seen:
                continue
            seen.add(h)
            records.append(parsed)

    def _has_next_page(self):
        selector = self.pagination_meta.get("next_button_selector")
        if not selector:
            return False
        el = self.page.query_selector(selector)
        return el is not None and el.is_visible()

    def _click_next(self):
        selector = self.pagination_meta.get("next_button_selector")
        self.page.click(selector)

    def _save(self, records):
        os.makedirs("output", exist_ok=True)
        with open("output/data.json", "w", encoding="utf-8") as f:
            json.dump(records, f, ensure_ascii=False, indent=2)

        if self.output_format in ("csv", "all") and records:
            fieldnames = sorted({k for r in records for k in r.keys()})
            with open("output/data.csv", "w", newline="", encoding="utf-8") as f:
                writer = csv.DictWriter(f, fieldnames=fieldnames)
                writer.writeheader()
                writer.writerows(records)

        if self.output_format in ("xlsx", "all") and records:
            try:
                from openpyxl import Workbook
                wb = Workbook()
                ws = wb.active
                fieldnames = sorted({k for r in records for k in r.keys()})
                ws.append(fieldnames)
                for r in records:
                    ws.append([r.get(k) for k in fieldnames])
                wb.save("output/data.xlsx")
            except ImportError:
                print("diagnostic: openpyxl not installed, skipping xlsx output")

    def run(self):
        self._setup()
        try:
            self.navigate(self.page)
            seen = set()
            records = []
            self._collect_page(seen, records)

            if self.pagination_config.get("mode") == "all":
                max_pages = self.pagination_config.get("max_pages", 1)
                page_count = 1
                while page_count < max_pages and self._has_next_page():
                    self._click_next()
                    self.page.wait_for_load_state("networkidle")
                    self._collect_page(seen, records)
                    page_count += 1

            self._save(records)
        finally:
            self._teardown()
`

// Render produces the __main__ invocation block CodeGen's emitted scraper
// must end with, parameterized by the finalized RunConfig. CodeGen embeds
// this verbatim; the Repair agent is told never to alter it (spec §4.4:
// "must preserve the __main__ block exactly").
func Render(cfg *artifact.RunConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nif __name__ == \"__main__\":\n")
	fmt.Fprintf(&b, "    scraper = Scraper(\n")
	fmt.Fprintf(&b, "        mode=%q,\n", string(cfg.BrowserMode))
	fmt.Fprintf(&b, "        output_format=%q,\n", string(cfg.Format))
	fmt.Fprintf(&b, "        pagination_config={\"mode\": %q, \"max_pages\": %d},\n",
		string(cfg.PaginationConfig.Mode), cfg.PaginationConfig.MaxPages)
	if cfg.NextButtonSelector != "" {
		fmt.Fprintf(&b, "        pagination_meta={\"next_button_selector\": %q},\n", cfg.NextButtonSelector)
	} else {
		fmt.Fprintf(&b, "        pagination_meta={},\n")
	}
	fmt.Fprintf(&b, "    )\n")
	fmt.Fprintf(&b, "    scraper.run()\n")
	return b.String()
}

// HasRequiredMainBlock reports whether code contains a __main__ guard and
// all four required keyword arguments (mode=, output_format=,
// pagination_config=, pagination_meta=) anywhere in its text. Neither
// position nor order is checked.
func HasRequiredMainBlock(code string) bool {
	hasGuard := strings.Contains(code, `if __name__ == "__main__"`) || strings.Contains(code, `if __name__ == '__main__'`)
	if !hasGuard {
		return false
	}
	for _, kw := range []string{"mode=", "output_format=", "pagination_config=", "pagination_meta="} {
		if !strings.Contains(code, kw) {
			return false
		}
	}
	return true
}
