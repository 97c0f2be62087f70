package gzhmu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The reservation system serves exactly two libraries, one per campus.
const (
	LibraryIDPanyu   = 100492446
	LibraryNamePanyu = "番禺校区图书馆"

	LibraryIDYuexiu   = 100492751
	LibraryNameYuexiu = "越秀校区图书馆"

	// LibraryService is the service URL authorized when logging in to
	// the reservation system.
	LibraryService = "http://ggyy.gzhmu.edu.cn"
)

const timeLayout = "2006-01-02 15:04"

var (
	seatNumberPattern = regexp.MustCompile(`\D(\d+)$`)
	roomLinkPattern   = regexp.MustCompile(`lab_(\d+).+?roomId=(\d+)&roomName=([^"]+)"`)
	checkInURLPattern = regexp.MustCompile(`c=(\d+)_Seat_(\d+)_1EQ`)

	accNoPattern    = regexp.MustCompile(`acc\.accno = "(\d+)";`)
	accNamePattern  = regexp.MustCompile(`acc\.name = "(\S+)";`)
	accDeptPattern  = regexp.MustCompile(`acc\.dept = "(\S+)";`)
	accScorePattern = regexp.MustCompile(`acc\.score = "(\d+)";`)

	todayRecordPattern = regexp.MustCompile(`(?s)<li date=.+?</li>`)
	reserveIDPattern   = regexp.MustCompile(`id='rsv_(\d+?)'`)
	todaySeatPattern   = regexp.MustCompile(`<div><div class=.+>(.+?)&nbsp;<span`)
	todayStartPattern  = regexp.MustCompile(`<li date='([\d\- :]+?)'`)
	todayEndPattern    = regexp.MustCompile(` - ([\d\- :]+?)</div></li>`)

	historyRecordPattern  = regexp.MustCompile(`(?s)<tbody .+?</tbody>`)
	historyDatePattern    = regexp.MustCompile(`date='([\d\- :]+?)'`)
	historyTitlePattern   = regexp.MustCompile(`<h3>(.*?)</h3>`)
	historySeatPattern    = regexp.MustCompile(`<a>(.+?)</a>`)
	historyOwnerPattern   = regexp.MustCompile(`</div</div></td><td>(.+?)</td><td>`)
	historyStartPattern   = regexp.MustCompile(`开始:</span> <span class='text-primary'>([\d\- :]+?)</span>`)
	historyEndPattern     = regexp.MustCompile(`结束:</span> <span class='text-primary'>([\d\- :]+?)</span>`)
	historyOrigEndPattern = regexp.MustCompile(`原始结束:</span> <span class='text-primary'>([\d\- :]+?)</span>`)
	historyRsvIDPattern   = regexp.MustCompile(`rsvId='(\d+?)'`)
	historyFinishPattern  = regexp.MustCompile(`pro\.j\.rsv\.finish\((\d+)\);`)
)

// flexInt decodes JSON numbers that the reservation API sometimes
// serves as quoted strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// Seat identifies a single reservable seat.
type Seat struct {
	LibID    int
	LibName  string
	RoomID   int
	RoomName string
	ID       int
	Name     string
	// Number is the seat number within its room, parsed from the
	// trailing digits of Name.
	Number int
}

// NewSeat builds a Seat, deriving the seat number from the name.
func NewSeat(libID int, libName string, roomID int, roomName string, seatID int, seatName string) (*Seat, error) {
	m := seatNumberPattern.FindStringSubmatch(seatName)
	if m == nil {
		return nil, &SeatNameError{Name: seatName}
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, &SeatNameError{Name: seatName}
	}
	return &Seat{
		LibID:    libID,
		LibName:  libName,
		RoomID:   roomID,
		RoomName: roomName,
		ID:       seatID,
		Name:     seatName,
		Number:   number,
	}, nil
}

// Room is a reading room holding seats.
type Room struct {
	LibID    int
	LibName  string
	RoomID   int
	RoomName string
	Seats    []*Seat
}

// SeatWithNumber returns the seat with the given number in the room.
func (r *Room) SeatWithNumber(no int) (*Seat, error) {
	for _, seat := range r.Seats {
		if seat.Number == no {
			return seat, nil
		}
	}
	return nil, ErrSeatNotFound
}

// Library is a campus library holding rooms.
type Library struct {
	ID    int
	Name  string
	Rooms []*Room
}

// RecordContext tells where a ReservationRecord came from and which
// of its fields are meaningful.
type RecordContext int

const (
	// RecordPublic is a record from the public seat status feed. Only
	// the common fields are set.
	RecordPublic RecordContext = iota
	// RecordUserOwned is a record from the user's today list and
	// carries a ReserveID.
	RecordUserOwned
	// RecordPrivateNew is a pending record from the user's history and
	// carries ReserveID, ReservedAt and CheckedIn.
	RecordPrivateNew
	// RecordPrivateFinished is a finished record from the user's
	// history and carries ReservedAt, CheckedIn, Defaulted and LeaveAt.
	RecordPrivateFinished
)

// ReservationRecord is a seat reservation.
type ReservationRecord struct {
	Context   RecordContext
	Seat      *Seat
	AccNo     int64
	Owner     string
	Validated bool
	Title     string
	Start     time.Time
	End       time.Time

	ReserveID  int64
	ReservedAt time.Time
	CheckedIn  bool
	Defaulted  bool
	LeaveAt    time.Time
}

// SeatInfo is the realtime status of a seat.
type SeatInfo struct {
	Seat *Seat
	Open bool
	// FreeTime is the remaining available time in minutes.
	FreeTime int
	Records  []*ReservationRecord
}

// UserInfo is the profile of the logged-in user.
type UserInfo struct {
	Username   string
	AccNo      int64
	Name       string
	Department string
	Score      int
}

// Target narrows a seat status query to a library, a room or a single
// seat. A nil Target queries every seat.
type Target interface {
	applyTarget(url.Values)
}

func (s *Seat) applyTarget(q url.Values) { q.Set("dev_id", strconv.Itoa(s.ID)) }

func (r *Room) applyTarget(q url.Values) { q.Set("room_id", strconv.Itoa(r.RoomID)) }

func (l *Library) applyTarget(q url.Values) { q.Set("lab_id", strconv.Itoa(l.ID)) }

// CheckInURL returns the URL that checks in the given seat.
func CheckInURL(seat *Seat) string {
	return fmt.Sprintf("http://update.unifound.net/wxnotice/s.aspx?c=%d_Seat_%d_1EQ", seat.LibID, seat.ID)
}

// LibraryClient is a Client extended with the seat reservation
// protocol. Library and user lookups are memoized per client.
type LibraryClient struct {
	*Client

	libraries []*Library
	userInfo  *UserInfo
}

// NewLibraryClient creates a new LibraryClient with the given
// credentials and options.
func NewLibraryClient(username, password string, opts ...Option) (*LibraryClient, error) {
	c, err := New(username, password, opts...)
	if err != nil {
		return nil, err
	}
	return &LibraryClient{Client: c}, nil
}

// Login authenticates and authorizes the reservation system.
func (l *LibraryClient) Login(ctx context.Context) (string, error) {
	return l.Client.Login(ctx, LibraryService)
}

type apiEnvelope struct {
	Ret  int             `json:"ret"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func checkRet(env *apiEnvelope) error {
	switch {
	case env.Ret == 1:
		return nil
	case env.Ret == -1:
		return ErrSessionExpired
	case strings.Contains(env.Msg, "ERRMSG_RESV_CONFLICT"):
		return ErrReserveConflict
	default:
		return NewAPIError(env.Msg, env.Ret)
	}
}

func (l *LibraryClient) callAPI(ctx context.Context, rawurl string) (*apiEnvelope, error) {
	resp, err := l.do(ctx, http.MethodGet, rawurl, nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewRequestError("reservation API request failed", resp.StatusCode)
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, NewAPIError("malformed response", 0)
	}
	if err := checkRet(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Libraries returns both campus libraries with their rooms and seats.
// The result is cached for the lifetime of the client.
func (l *LibraryClient) Libraries(ctx context.Context) ([]*Library, error) {
	if l.libraries != nil {
		return l.libraries, nil
	}

	resp, err := l.do(ctx, http.MethodGet, l.libraryBase+"/clientweb/xcus/ic2/Default.aspx", nil, nil)
	if err != nil {
		return nil, err
	}
	// A redirect here bounces to the SSO login page.
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		return nil, ErrSessionExpired
	}

	panyu := &Library{ID: LibraryIDPanyu, Name: LibraryNamePanyu}
	yuexiu := &Library{ID: LibraryIDYuexiu, Name: LibraryNameYuexiu}

	for _, m := range roomLinkPattern.FindAllStringSubmatch(string(resp.Body), -1) {
		libID, _ := strconv.Atoi(m[1])
		roomID, _ := strconv.Atoi(m[2])
		roomName, err := url.QueryUnescape(m[3])
		if err != nil {
			roomName = m[3]
		}

		libName := LibraryNameYuexiu
		if libID == LibraryIDPanyu {
			libName = LibraryNamePanyu
		}

		q := url.Values{
			"byType":        {"devcls"},
			"classkind":     {"8"},
			"display":       {"fp"},
			"md":            {"d"},
			"room_id":       {m[2]},
			"purpose":       {""},
			"selectOpenAty": {""},
			"cld_name":      {"default"},
			"act":           {"get_dev_coord"},
		}
		env, err := l.callAPI(ctx, l.libraryBase+"/ClientWeb/pro/ajax/device.aspx?"+q.Encode())
		if err != nil {
			return nil, err
		}

		var data struct {
			Objs []struct {
				ID   flexInt `json:"id"`
				Name string  `json:"name"`
			} `json:"objs"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, NewAPIError("malformed seat coordinates", 0)
		}

		room := &Room{LibID: libID, LibName: libName, RoomID: roomID, RoomName: roomName}
		for _, obj := range data.Objs {
			seat, err := NewSeat(libID, libName, roomID, roomName, int(obj.ID), obj.Name)
			if err != nil {
				return nil, err
			}
			room.Seats = append(room.Seats, seat)
		}

		switch libID {
		case LibraryIDPanyu:
			panyu.Rooms = append(panyu.Rooms, room)
		case LibraryIDYuexiu:
			yuexiu.Rooms = append(yuexiu.Rooms, room)
		}
	}

	l.libraries = []*Library{panyu, yuexiu}
	return l.libraries, nil
}

// LibraryByID returns the library with the given ID.
func (l *LibraryClient) LibraryByID(ctx context.Context, id int) (*Library, error) {
	libs, err := l.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, library := range libs {
		if library.ID == id {
			return library, nil
		}
	}
	return nil, ErrLibraryNotFound
}

// LibraryByName returns the library with the given name.
func (l *LibraryClient) LibraryByName(ctx context.Context, name string) (*Library, error) {
	libs, err := l.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, library := range libs {
		if library.Name == name {
			return library, nil
		}
	}
	return nil, ErrLibraryNotFound
}

// RoomByID returns the room with the given ID.
func (l *LibraryClient) RoomByID(ctx context.Context, id int) (*Room, error) {
	libs, err := l.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, library := range libs {
		for _, room := range library.Rooms {
			if room.RoomID == id {
				return room, nil
			}
		}
	}
	return nil, ErrRoomNotFound
}

// RoomsByName returns every room whose name contains the given string.
func (l *LibraryClient) RoomsByName(ctx context.Context, name string) ([]*Room, error) {
	libs, err := l.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	var rooms []*Room
	for _, library := range libs {
		for _, room := range library.Rooms {
			if strings.Contains(room.RoomName, name) {
				rooms = append(rooms, room)
			}
		}
	}
	return rooms, nil
}

// SeatByID returns the seat with the given ID.
func (l *LibraryClient) SeatByID(ctx context.Context, id int) (*Seat, error) {
	libs, err := l.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, library := range libs {
		for _, room := range library.Rooms {
			for _, seat := range room.Seats {
				if seat.ID == id {
					return seat, nil
				}
			}
		}
	}
	return nil, ErrSeatNotFound
}

// SeatsByName returns every seat whose name contains the given string.
func (l *LibraryClient) SeatsByName(ctx context.Context, name string) ([]*Seat, error) {
	libs, err := l.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	var seats []*Seat
	for _, library := range libs {
		for _, room := range library.Rooms {
			for _, seat := range room.Seats {
				if strings.Contains(seat.Name, name) {
					seats = append(seats, seat)
				}
			}
		}
	}
	return seats, nil
}

// SeatFromCheckInURL resolves a check in URL back to its seat.
func (l *LibraryClient) SeatFromCheckInURL(ctx context.Context, rawurl string) (*Seat, error) {
	m := checkInURLPattern.FindStringSubmatch(rawurl)
	if m == nil {
		return nil, fmt.Errorf("not a check in URL: %q", rawurl)
	}
	libID, _ := strconv.Atoi(m[1])
	seatID, _ := strconv.Atoi(m[2])

	library, err := l.LibraryByID(ctx, libID)
	if err != nil {
		return nil, err
	}
	seat, err := l.SeatByID(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if library.ID != seat.LibID {
		return nil, ErrSeatNotFound
	}
	return seat, nil
}

// SeatInfos queries the realtime status of the targeted seats. A zero
// date defaults to today, a zero start to now and a zero end to 23:59.
func (l *LibraryClient) SeatInfos(ctx context.Context, target Target, date, start, end time.Time) ([]*SeatInfo, error) {
	now := time.Now()
	if date.IsZero() {
		date = now
	}
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, time.Local)
	}

	q := url.Values{
		"byType":        {"devcls"},
		"classkind":     {"8"},
		"display":       {"fp"},
		"md":            {"d"},
		"purpose":       {""},
		"selectOpenAty": {""},
		"cld_name":      {"default"},
		"date":          {date.Format("2006-01-02")},
		"fr_start":      {start.Format("15:04")},
		"fr_end":        {end.Format("15:04")},
		"act":           {"get_rsv_sta"},
	}
	if target != nil {
		target.applyTarget(q)
	}

	env, err := l.callAPI(ctx, l.libraryBase+"/ClientWeb/pro/ajax/device.aspx?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var entries []struct {
		LabID    flexInt `json:"labId"`
		LabName  string  `json:"labName"`
		RoomID   flexInt `json:"roomId"`
		RoomName string  `json:"roomName"`
		DevID    flexInt `json:"devId"`
		DevName  string  `json:"devName"`
		State    *string `json:"state"`
		FreeTime flexInt `json:"freeTime"`
		Ops      []struct {
			State string `json:"state"`
		} `json:"ops"`
		TS []struct {
			AccNo flexInt `json:"accno"`
			Owner string  `json:"owner"`
			State string  `json:"state"`
			Title string  `json:"title"`
			Start string  `json:"start"`
			End   string  `json:"end"`
		} `json:"ts"`
	}
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, NewAPIError("malformed seat status", 0)
	}

	infos := make([]*SeatInfo, 0, len(entries))
	for _, e := range entries {
		seat, err := NewSeat(int(e.LabID), e.LabName, int(e.RoomID), e.RoomName, int(e.DevID), e.DevName)
		if err != nil {
			return nil, err
		}

		open := false
		if e.State != nil {
			open = *e.State == "open"
		} else if len(e.Ops) > 0 {
			open = e.Ops[0].State == "open"
		}

		info := &SeatInfo{Seat: seat, Open: open, FreeTime: int(e.FreeTime)}
		for _, t := range e.TS {
			startT, err := time.ParseInLocation(timeLayout, t.Start, time.Local)
			if err != nil {
				return nil, NewAPIError("malformed record time", 0)
			}
			endT, err := time.ParseInLocation(timeLayout, t.End, time.Local)
			if err != nil {
				return nil, NewAPIError("malformed record time", 0)
			}
			info.Records = append(info.Records, &ReservationRecord{
				Context:   RecordPublic,
				Seat:      seat,
				AccNo:     int64(t.AccNo),
				Owner:     t.Owner,
				Validated: t.State == "doing",
				Title:     t.Title,
				Start:     startT,
				End:       endT,
			})
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// CurrentUserInfo returns the profile of the logged-in user. The
// result is cached for the lifetime of the client.
func (l *LibraryClient) CurrentUserInfo(ctx context.Context) (*UserInfo, error) {
	if l.userInfo != nil {
		return l.userInfo, nil
	}

	resp, err := l.do(ctx, http.MethodGet, l.libraryBase+"/clientweb/xcus/a/center.aspx", nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return nil, err
	}
	text := string(resp.Body)

	accM := accNoPattern.FindStringSubmatch(text)
	if accM == nil {
		return nil, ErrSessionExpired
	}
	nameM := accNamePattern.FindStringSubmatch(text)
	deptM := accDeptPattern.FindStringSubmatch(text)
	scoreM := accScorePattern.FindStringSubmatch(text)
	if nameM == nil || deptM == nil || scoreM == nil {
		return nil, NewAPIError("user profile fields not found", 0)
	}

	accNo, _ := strconv.ParseInt(accM[1], 10, 64)
	score, _ := strconv.Atoi(scoreM[1])

	l.userInfo = &UserInfo{
		Username:   l.username,
		AccNo:      accNo,
		Name:       nameM[1],
		Department: deptM[1],
		Score:      score,
	}
	return l.userInfo, nil
}

// TodayReserveRecords returns the user's pending reservations for
// today, joined against the realtime seat status to fill in owner and
// validation state.
func (l *LibraryClient) TodayReserveRecords(ctx context.Context) ([]*ReservationRecord, error) {
	resp, err := l.do(ctx, http.MethodGet, l.libraryBase+"/clientweb/xcus/ic2/index.aspx", nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return nil, err
	}
	text := string(resp.Body)

	start := strings.Index(text, `<ul class="dyn_resv">`)
	if start < 0 {
		return nil, nil
	}
	section := text[start:]
	if end := strings.Index(section, "</ul>"); end >= 0 {
		section = section[:end]
	}

	infos, err := l.SeatInfos(ctx, nil, time.Time{}, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*SeatInfo, len(infos))
	for _, info := range infos {
		byName[info.Seat.Name] = info
	}

	var records []*ReservationRecord
	for _, raw := range todayRecordPattern.FindAllString(section, -1) {
		idM := reserveIDPattern.FindStringSubmatch(raw)
		seatM := todaySeatPattern.FindStringSubmatch(raw)
		startM := todayStartPattern.FindStringSubmatch(raw)
		endM := todayEndPattern.FindStringSubmatch(raw)
		if idM == nil || seatM == nil || startM == nil || endM == nil {
			continue
		}

		reserveID, _ := strconv.ParseInt(idM[1], 10, 64)
		startT, err := time.ParseInLocation(timeLayout, startM[1], time.Local)
		if err != nil {
			continue
		}
		// The end stamp omits the year.
		endT, err := time.ParseInLocation(timeLayout, fmt.Sprintf("%d-%s", startT.Year(), endM[1]), time.Local)
		if err != nil {
			continue
		}

		info, ok := byName[seatM[1]]
		if !ok {
			continue
		}
		for _, rec := range info.Records {
			if rec.Start.Equal(startT) && rec.End.Equal(endT) {
				records = append(records, &ReservationRecord{
					Context:   RecordUserOwned,
					Seat:      info.Seat,
					AccNo:     rec.AccNo,
					Owner:     rec.Owner,
					Validated: rec.Validated,
					Title:     rec.Title,
					Start:     rec.Start,
					End:       rec.End,
					ReserveID: reserveID,
				})
				break
			}
		}
	}
	return records, nil
}

// ReserveHistory returns the user's reservation history. With
// newRecords it returns pending reservations, otherwise the finished
// ones of the last three months.
func (l *LibraryClient) ReserveHistory(ctx context.Context, newRecords bool) ([]*ReservationRecord, error) {
	flag := "OVER"
	if newRecords {
		flag = "NEW"
	}
	env, err := l.callAPI(ctx, l.libraryBase+"/ClientWeb/pro/ajax/center.aspx?act=get_History_resv&StatFlag="+flag)
	if err != nil {
		return nil, err
	}
	if strings.Contains(env.Msg, "没有数据") {
		return nil, nil
	}

	user, err := l.CurrentUserInfo(ctx)
	if err != nil {
		return nil, err
	}

	var (
		today        []*ReservationRecord
		todayFetched bool
		records      []*ReservationRecord
	)
	for _, raw := range historyRecordPattern.FindAllString(env.Msg, -1) {
		dateM := historyDatePattern.FindStringSubmatch(raw)
		titleM := historyTitlePattern.FindStringSubmatch(raw)
		seatM := historySeatPattern.FindStringSubmatch(raw)
		ownerM := historyOwnerPattern.FindStringSubmatch(raw)
		startM := historyStartPattern.FindStringSubmatch(raw)
		endM := historyEndPattern.FindStringSubmatch(raw)
		if dateM == nil || titleM == nil || seatM == nil || ownerM == nil || startM == nil || endM == nil {
			continue
		}

		reservedAt, err := time.ParseInLocation(timeLayout, dateM[1], time.Local)
		if err != nil {
			continue
		}
		startT, err := time.ParseInLocation(timeLayout, fmt.Sprintf("%d-%s", reservedAt.Year(), startM[1]), time.Local)
		if err != nil {
			continue
		}
		endT, err := time.ParseInLocation(timeLayout, fmt.Sprintf("%d-%s", reservedAt.Year(), endM[1]), time.Local)
		if err != nil {
			continue
		}

		seats, err := l.SeatsByName(ctx, seatM[1])
		if err != nil {
			return nil, err
		}
		if len(seats) == 0 {
			continue
		}
		seat := seats[0]

		rec := &ReservationRecord{
			Seat:       seat,
			AccNo:      user.AccNo,
			Owner:      ownerM[1],
			Title:      titleM[1],
			Start:      startT,
			End:        endT,
			ReservedAt: reservedAt,
			CheckedIn:  strings.Contains(raw, "已签到"),
		}

		if newRecords {
			rec.Context = RecordPrivateNew
			if strings.Contains(raw, "未生效") {
				if m := historyRsvIDPattern.FindStringSubmatch(raw); m != nil {
					rec.ReserveID, _ = strconv.ParseInt(m[1], 10, 64)
				}
			} else {
				rec.Validated = true
				if m := historyFinishPattern.FindStringSubmatch(raw); m != nil {
					rec.ReserveID, _ = strconv.ParseInt(m[1], 10, 64)
				} else {
					// Validated records sometimes lack an inline id,
					// recover it from the today list.
					if !todayFetched {
						today, err = l.TodayReserveRecords(ctx)
						if err != nil {
							return nil, err
						}
						todayFetched = true
					}
					for _, t := range today {
						if t.Seat.ID == seat.ID && t.Start.Equal(startT) && t.End.Equal(endT) {
							rec.ReserveID = t.ReserveID
							break
						}
					}
				}
			}
		} else {
			rec.Context = RecordPrivateFinished
			rec.LeaveAt = endT
			if m := historyOrigEndPattern.FindStringSubmatch(raw); m != nil {
				if orig, err := time.ParseInLocation(timeLayout, fmt.Sprintf("%d-%s", reservedAt.Year(), m[1]), time.Local); err == nil {
					rec.End = orig
				}
			}
			rec.Defaulted = strings.Contains(raw, "已违约")
		}

		records = append(records, rec)
	}
	return records, nil
}

// Reserve books a seat for the given date and time window. The window
// must be at least 30 minutes.
func (l *LibraryClient) Reserve(ctx context.Context, seat *Seat, date, start, end time.Time) error {
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if endMin-startMin < 30 {
		return ErrReserveTooShort
	}

	day := date.Format("2006-01-02")
	q := url.Values{
		"dialogid":   {""},
		"dev_id":     {strconv.Itoa(seat.ID)},
		"lab_id":     {""},
		"kind_id":    {""},
		"room_id":    {""},
		"type":       {"dev"},
		"prop":       {""},
		"test_id":    {""},
		"term":       {""},
		"number":     {""},
		"test_name":  {""},
		"start":      {day + " " + start.Format("15:04")},
		"end":        {day + " " + end.Format("15:04")},
		"start_time": {strconv.Itoa(start.Hour()*100 + start.Minute())},
		"end_time":   {strconv.Itoa(end.Hour()*100 + end.Minute())},
		"up_file":    {""},
		"memo":       {""},
		"act":        {"set_resv"},
	}

	_, err := l.callAPI(ctx, l.libraryBase+"/ClientWeb/pro/ajax/reserve.aspx?"+q.Encode())
	return err
}

// CheckIn checks in the reserved seat. It returns false when the seat
// was already checked in or the sign page rejects the attempt.
func (l *LibraryClient) CheckIn(ctx context.Context, record *ReservationRecord) (bool, error) {
	resp, err := l.do(ctx, http.MethodGet, CheckInURL(record.Seat), nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return false, err
	}
	body := string(resp.Body)
	if strings.Contains(body, "操作成功") {
		return false, nil
	}
	// A login form here means the session bounced to the SSO server.
	if extractExecution(body, "fm1") != "" {
		return false, ErrSessionExpired
	}

	resp, err = l.do(ctx, http.MethodGet, l.libraryBase+"/Pages/WxSeatSign.aspx?Userin=true", nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return false, err
	}
	return strings.Contains(string(resp.Body), "签到成功"), nil
}

// Cancel cancels a reservation before it starts. It returns false
// when the record no longer exists.
func (l *LibraryClient) Cancel(ctx context.Context, record *ReservationRecord) (bool, error) {
	target := l.libraryBase + "/ClientWeb/pro/ajax/reserve.aspx?act=del_resv&id=" + strconv.FormatInt(record.ReserveID, 10)
	resp, err := l.do(ctx, http.MethodGet, target, nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return false, err
	}
	if strings.Contains(string(resp.Body), "未找到预约") {
		return false, nil
	}

	var env apiEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return false, NewAPIError("malformed response", 0)
	}
	if err := checkRet(&env); err != nil {
		return false, err
	}
	return true, nil
}

// Finish ends a running reservation. It returns false when the
// reservation window does not cover the current time. When the server
// demands a check in first, Finish checks in and retries once.
func (l *LibraryClient) Finish(ctx context.Context, record *ReservationRecord) (bool, error) {
	target := l.libraryBase + "/ClientWeb/pro/ajax/reserve.aspx?act=resv_leave&type=2&resv_id=" + strconv.FormatInt(record.ReserveID, 10)
	resp, err := l.do(ctx, http.MethodGet, target, nil, &RequestOptions{FollowRedirects: true})
	if err != nil {
		return false, err
	}

	now := time.Now()
	if record.Start.After(now) || record.End.Before(now) {
		return false, nil
	}
	body := string(resp.Body)
	if strings.Contains(body, "获取预约的设备失败") {
		return false, nil
	}

	var env apiEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return false, NewAPIError("malformed response", 0)
	}
	switch {
	case env.Ret == 1:
		return true, nil
	case env.Ret == -1:
		return false, ErrSessionExpired
	case env.Msg == "只有正在使用的预约方可退出":
		if _, err := l.CheckIn(ctx, record); err != nil {
			return false, err
		}
		resp, err := l.do(ctx, http.MethodGet, target, nil, &RequestOptions{FollowRedirects: true})
		if err != nil {
			return false, err
		}
		var retry apiEnvelope
		if err := json.Unmarshal(resp.Body, &retry); err != nil {
			return false, NewAPIError("malformed response", 0)
		}
		if retry.Ret == 1 {
			return true, nil
		}
		return false, NewAPIError(retry.Msg, retry.Ret)
	}
	return false, NewAPIError(env.Msg, env.Ret)
}
