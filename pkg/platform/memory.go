package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	jmes "github.com/jmespath/go-jmespath"
)

// Memory is an in-process implementation of Client. It backs dev runs without a platform
// and is the test double for the orchestrator. It enforces the platform constraints provisioning
// relies on: referenced entities must exist, an integration event in use cannot be deleted,
// "{incrementorID}" placeholders in new IDs consume incrementor values, and re-putting an
// existing xp index answers with an IdExists error.
type Memory struct {
	mu sync.Mutex

	adminUsers   map[string]User
	apiClients   map[string]APIClient
	profiles     map[string]SecurityProfile
	profileAsg   map[SecurityProfileAssignment]struct{}
	incrementors map[string]Incrementor
	senders      map[string]MessageSender
	senderAsg    map[MessageSenderAssignment]struct{}
	buyers       map[string]Buyer
	catalogs     map[string]Catalog
	catalogAsg   map[CatalogAssignment]struct{}
	suppliers    map[string]Supplier
	xpIndices    map[XpIndex]struct{}
	events       map[string]IntegrationEvent

	calls    []string
	failures map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		adminUsers:   map[string]User{},
		apiClients:   map[string]APIClient{},
		profiles:     map[string]SecurityProfile{},
		profileAsg:   map[SecurityProfileAssignment]struct{}{},
		incrementors: map[string]Incrementor{},
		senders:      map[string]MessageSender{},
		senderAsg:    map[MessageSenderAssignment]struct{}{},
		buyers:       map[string]Buyer{},
		catalogs:     map[string]Catalog{},
		catalogAsg:   map[CatalogAssignment]struct{}{},
		suppliers:    map[string]Supplier{},
		xpIndices:    map[XpIndex]struct{}{},
		events:       map[string]IntegrationEvent{},
		failures:     map[string]error{},
	}
}

// FailOn makes every subsequent call of op return err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	m.failures[op] = err
	m.mu.Unlock()
}

// Calls returns the operations issued so far, in the order they were received.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times op was issued.
func (m *Memory) CallCount(op string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// enter records op and returns the injected failure, if any. Callers hold m.mu.
func (m *Memory) enter(op string) error {
	m.calls = append(m.calls, op)
	return m.failures[op]
}

func notFound(kind, id string) error {
	return &APIError{Status: http.StatusNotFound, Errors: []ErrorDetail{{ErrorCode: "NotFound", Message: kind + " not found: " + id}}}
}

func idExists(kind, id string) error {
	return &APIError{Status: http.StatusConflict, Errors: []ErrorDetail{{ErrorCode: "IdExists", Message: kind + " already exists: " + id}}}
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// resolveID substitutes "{incrementorID}" placeholders, or generates an ID when blank. Callers hold m.mu.
func (m *Memory) resolveID(id string) (string, error) {
	if id == "" {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:22], nil
	}
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(id, func(tok string) string {
		name := strings.Trim(tok, "{}")
		inc, ok := m.incrementors[name]
		if !ok {
			missing = name
			return tok
		}
		inc.LastNumber++
		m.incrementors[name] = inc
		return fmt.Sprintf("%0*d", inc.LeftPaddingCount, inc.LastNumber)
	})
	if missing != "" {
		return "", notFound("incrementor", missing)
	}
	return out, nil
}

// matches evaluates filters against v. Keys are JMESPath field paths over the JSON form of v.
func matches(v any, f Filters) bool {
	if len(f) == 0 {
		return true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return false
	}
	for key, pattern := range f {
		val, err := jmes.Search(key, doc)
		if err != nil {
			return false
		}
		actual := ""
		if val != nil {
			actual = fmt.Sprint(val)
		}
		if !filterMatch(pattern, actual) {
			return false
		}
	}
	return true
}

// filterMatch applies the platform's filter operators: "|" separates alternatives, and an
// alternative may start with "!" (negation) or "<", ">", "<=", ">=" (string comparison).
func filterMatch(expr, actual string) bool {
	for _, alt := range strings.Split(expr, "|") {
		switch {
		case strings.HasPrefix(alt, "!"):
			if !wildcardMatch(alt[1:], actual) {
				return true
			}
		case strings.HasPrefix(alt, "<="):
			if actual <= alt[2:] {
				return true
			}
		case strings.HasPrefix(alt, ">="):
			if actual >= alt[2:] {
				return true
			}
		case strings.HasPrefix(alt, "<"):
			if actual < alt[1:] {
				return true
			}
		case strings.HasPrefix(alt, ">"):
			if actual > alt[1:] {
				return true
			}
		case wildcardMatch(alt, actual):
			return true
		}
	}
	return false
}

// wildcardMatch implements the platform filter syntax: "*" alone means "has any value",
// otherwise "*" matches any run of characters and everything else is compared exactly.
func wildcardMatch(pattern, actual string) bool {
	if pattern == "*" {
		return actual != ""
	}
	if !strings.Contains(pattern, "*") {
		return pattern == actual
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(actual, parts[0]) {
		return false
	}
	rest := actual[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(rest, parts[i])
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(parts[i]):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}

func filtered[T any](items map[string]T, f Filters) []T {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := []T{}
	for _, k := range keys {
		if matches(items[k], f) {
			out = append(out, items[k])
		}
	}
	return out
}

func (m *Memory) Authenticate(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("authenticate"); err != nil {
		return "", err
	}
	return "memory-token", nil
}

func (m *Memory) SaveAdminUser(ctx context.Context, token string, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("adminusers.save"); err != nil {
		return User{}, err
	}
	m.adminUsers[u.ID] = u
	return u, nil
}

func (m *Memory) ListAdminUsers(ctx context.Context, token string, f Filters) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("adminusers.list"); err != nil {
		return nil, err
	}
	return filtered(m.adminUsers, f), nil
}

func (m *Memory) ListAPIClients(ctx context.Context, token string, f Filters) ([]APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("apiclients.list"); err != nil {
		return nil, err
	}
	return filtered(m.apiClients, f), nil
}

func (m *Memory) CreateAPIClient(ctx context.Context, token string, c APIClient) (APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("apiclients.create"); err != nil {
		return APIClient{}, err
	}
	id, err := m.resolveID(c.ID)
	if err != nil {
		return APIClient{}, err
	}
	if _, ok := m.apiClients[id]; ok {
		return APIClient{}, idExists("api client", id)
	}
	c.ID = id
	m.apiClients[id] = c
	return c, nil
}

func (m *Memory) SaveAPIClient(ctx context.Context, token, id string, c APIClient) (APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("apiclients.save"); err != nil {
		return APIClient{}, err
	}
	// PUT replaces the whole record; an omitted checkout event unbinds the client.
	c.ID = id
	m.apiClients[id] = c
	return c, nil
}

// SeedAPIClient stores c as-is, bypassing call recording. Used to model pre-existing state.
func (m *Memory) SeedAPIClient(c APIClient) {
	m.mu.Lock()
	m.apiClients[c.ID] = c
	m.mu.Unlock()
}

func (m *Memory) PatchAPIClient(ctx context.Context, token, id string, p APIClientPatch) (APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("apiclients.patch"); err != nil {
		return APIClient{}, err
	}
	c, ok := m.apiClients[id]
	if !ok {
		return APIClient{}, notFound("api client", id)
	}
	if p.OrderCheckoutIntegrationEventID != nil {
		if _, ok := m.events[*p.OrderCheckoutIntegrationEventID]; !ok {
			return APIClient{}, notFound("integration event", *p.OrderCheckoutIntegrationEventID)
		}
		v := *p.OrderCheckoutIntegrationEventID
		c.OrderCheckoutIntegrationEventID = &v
	} else {
		c.OrderCheckoutIntegrationEventID = nil
	}
	m.apiClients[id] = c
	return c, nil
}

func (m *Memory) SaveSecurityProfile(ctx context.Context, token string, p SecurityProfile) (SecurityProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("securityprofiles.save"); err != nil {
		return SecurityProfile{}, err
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *Memory) SaveSecurityProfileAssignment(ctx context.Context, token string, a SecurityProfileAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("securityprofiles.assign"); err != nil {
		return err
	}
	if _, ok := m.profiles[a.SecurityProfileID]; !ok {
		return notFound("security profile", a.SecurityProfileID)
	}
	if a.BuyerID != "" {
		if _, ok := m.buyers[a.BuyerID]; !ok {
			return notFound("buyer", a.BuyerID)
		}
	}
	if a.UserID != "" {
		if _, ok := m.adminUsers[a.UserID]; !ok {
			return notFound("user", a.UserID)
		}
	}
	m.profileAsg[a] = struct{}{}
	return nil
}

// ProfileAssignments returns the stored security profile assignments.
func (m *Memory) ProfileAssignments() []SecurityProfileAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SecurityProfileAssignment, 0, len(m.profileAsg))
	for a := range m.profileAsg {
		out = append(out, a)
	}
	return out
}

func (m *Memory) SaveIncrementor(ctx context.Context, token string, i Incrementor) (Incrementor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("incrementors.save"); err != nil {
		return Incrementor{}, err
	}
	// Saving an existing incrementor keeps its position; the platform never rewinds a sequence.
	if prev, ok := m.incrementors[i.ID]; ok && prev.LastNumber > i.LastNumber {
		i.LastNumber = prev.LastNumber
	}
	m.incrementors[i.ID] = i
	return i, nil
}

func (m *Memory) SaveMessageSender(ctx context.Context, token string, s MessageSender) (MessageSender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("messagesenders.save"); err != nil {
		return MessageSender{}, err
	}
	m.senders[s.ID] = s
	return s, nil
}

func (m *Memory) SaveMessageSenderAssignment(ctx context.Context, token string, a MessageSenderAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("messagesenders.assign"); err != nil {
		return err
	}
	if _, ok := m.senders[a.MessageSenderID]; !ok {
		return notFound("message sender", a.MessageSenderID)
	}
	m.senderAsg[a] = struct{}{}
	return nil
}

// SenderAssignments returns the stored message sender assignments.
func (m *Memory) SenderAssignments() []MessageSenderAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageSenderAssignment, 0, len(m.senderAsg))
	for a := range m.senderAsg {
		out = append(out, a)
	}
	return out
}

func (m *Memory) ListMessageSenders(ctx context.Context, token string) ([]MessageSender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("messagesenders.list"); err != nil {
		return nil, err
	}
	return filtered(m.senders, nil), nil
}

func (m *Memory) DeleteMessageSender(ctx context.Context, token, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("messagesenders.delete"); err != nil {
		return err
	}
	if _, ok := m.senders[id]; !ok {
		return notFound("message sender", id)
	}
	delete(m.senders, id)
	for a := range m.senderAsg {
		if a.MessageSenderID == id {
			delete(m.senderAsg, a)
		}
	}
	return nil
}

func (m *Memory) ListBuyers(ctx context.Context, token string, f Filters) ([]Buyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("buyers.list"); err != nil {
		return nil, err
	}
	return filtered(m.buyers, f), nil
}

func (m *Memory) CreateBuyer(ctx context.Context, token string, b Buyer) (Buyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("buyers.create"); err != nil {
		return Buyer{}, err
	}
	id, err := m.resolveID(b.ID)
	if err != nil {
		return Buyer{}, err
	}
	if _, ok := m.buyers[id]; ok {
		return Buyer{}, idExists("buyer", id)
	}
	b.ID = id
	m.buyers[id] = b
	return b, nil
}

func (m *Memory) SaveCatalog(ctx context.Context, token string, c Catalog) (Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("catalogs.save"); err != nil {
		return Catalog{}, err
	}
	m.catalogs[c.ID] = c
	return c, nil
}

func (m *Memory) SaveCatalogAssignment(ctx context.Context, token string, a CatalogAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("catalogs.assign"); err != nil {
		return err
	}
	if _, ok := m.catalogs[a.CatalogID]; !ok {
		return notFound("catalog", a.CatalogID)
	}
	if _, ok := m.buyers[a.BuyerID]; !ok {
		return notFound("buyer", a.BuyerID)
	}
	m.catalogAsg[a] = struct{}{}
	return nil
}

func (m *Memory) ListSuppliers(ctx context.Context, token string, f Filters) ([]Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("suppliers.list"); err != nil {
		return nil, err
	}
	return filtered(m.suppliers, f), nil
}

func (m *Memory) CreateSupplier(ctx context.Context, token string, s Supplier) (Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("suppliers.create"); err != nil {
		return Supplier{}, err
	}
	id, err := m.resolveID(s.ID)
	if err != nil {
		return Supplier{}, err
	}
	if _, ok := m.suppliers[id]; ok {
		return Supplier{}, idExists("supplier", id)
	}
	s.ID = id
	m.suppliers[id] = s
	return s, nil
}

func (m *Memory) PatchSupplier(ctx context.Context, token, id string, p SupplierPatch) (Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("suppliers.patch"); err != nil {
		return Supplier{}, err
	}
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, notFound("supplier", id)
	}
	xp := map[string]any{}
	for k, v := range s.Xp {
		xp[k] = v
	}
	for k, v := range p.Xp {
		xp[k] = v
	}
	s.Xp = xp
	m.suppliers[id] = s
	return s, nil
}

func (m *Memory) PutXpIndex(ctx context.Context, token string, idx XpIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("xpindices.put"); err != nil {
		return err
	}
	if _, ok := m.xpIndices[idx]; ok {
		return idExists("xp index", idx.ThingType+"."+idx.Key)
	}
	m.xpIndices[idx] = struct{}{}
	return nil
}

// XpIndices returns the stored xp indices.
func (m *Memory) XpIndices() []XpIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]XpIndex, 0, len(m.xpIndices))
	for idx := range m.xpIndices {
		out = append(out, idx)
	}
	return out
}

func (m *Memory) SaveIntegrationEvent(ctx context.Context, token string, e IntegrationEvent) (IntegrationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("integrationevents.save"); err != nil {
		return IntegrationEvent{}, err
	}
	m.events[e.ID] = e
	return e, nil
}

func (m *Memory) ListIntegrationEvents(ctx context.Context, token string) ([]IntegrationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("integrationevents.list"); err != nil {
		return nil, err
	}
	return filtered(m.events, nil), nil
}

func (m *Memory) DeleteIntegrationEvent(ctx context.Context, token, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("integrationevents.delete"); err != nil {
		return err
	}
	if _, ok := m.events[id]; !ok {
		return notFound("integration event", id)
	}
	for _, c := range m.apiClients {
		if c.OrderCheckoutIntegrationEventID != nil && *c.OrderCheckoutIntegrationEventID == id {
			return &APIError{Status: http.StatusBadRequest, Errors: []ErrorDetail{{ErrorCode: "InUse", Message: "integration event referenced by api client " + c.ID}}}
		}
	}
	delete(m.events, id)
	return nil
}
